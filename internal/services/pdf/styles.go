package pdf

// TextStyle describes how one kind of paragraph is drawn. Sizes are points, distances millimetres.
type TextStyle struct {
	FontStyle   string
	FontSize    float64
	LineHeight  float64
	SpaceBefore float64
	SpaceAfter  float64
	Indent      float64
	Align       string
}

// StyleSheet is the full set of report styles. It is a value: copies never share state.
type StyleSheet struct {
	PageSize     string
	Compress     bool
	Margin       float64
	FontFamily   string
	SectionGap   float64
	BulletGlyph  string
	BulletIndent float64

	Title   TextStyle
	Heading TextStyle
	Body    TextStyle
	Bullet  TextStyle
}

// DefaultStyleSheet returns the standard report layout
func DefaultStyleSheet() StyleSheet {
	return StyleSheet{
		PageSize:     "Letter",
		Compress:     true,
		Margin:       25,
		FontFamily:   "Helvetica",
		SectionGap:   5,
		BulletGlyph:  "•",
		BulletIndent: 5,

		Title: TextStyle{
			FontStyle:  "B",
			FontSize:   16,
			LineHeight: 8,
			SpaceAfter: 4,
			Align:      "C",
		},
		Heading: TextStyle{
			FontStyle:   "B",
			FontSize:    14,
			LineHeight:  7,
			SpaceBefore: 3.5,
			SpaceAfter:  2,
			Align:       "L",
		},
		Body: TextStyle{
			FontSize:   11,
			LineHeight: 5.5,
			SpaceAfter: 2,
			Align:      "L",
		},
		Bullet: TextStyle{
			FontSize:    11,
			LineHeight:  5.5,
			SpaceBefore: 1,
			Indent:      10,
			Align:       "L",
		},
	}
}
