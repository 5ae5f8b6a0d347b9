package glpi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
)

// fakeGLPI is a minimal in-process GLPI API.
type fakeGLPI struct {
	mu              sync.Mutex
	requests        []*http.Request
	killCalls       int32
	linkedItemsFail bool
	documentFail    map[string]bool
	sessionToken    string
}

func newFakeGLPI() *fakeGLPI {
	return &fakeGLPI{sessionToken: "sess-123", documentFail: map[string]bool{}}
}

func (f *fakeGLPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/initSession", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.Header.Get("App-Token") != "app-token" {
			http.Error(w, `["ERROR_APP_TOKEN_PARAMETERS_MISSING"]`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"session_token": f.sessionToken})
	})

	mux.HandleFunc("/killSession", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		atomic.AddInt32(&f.killCalls, 1)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/Ticket/42", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"id": 42, "name": "Printer offline", "content": "&lt;p&gt;The printer is offline&lt;/p&gt;"}`))
	})

	mux.HandleFunc("/Ticket/42/Item_Ticket", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.linkedItemsFail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[
			{"itemtype": "Document", "items_id": "7"},
			{"itemtype": "Computer", "items_id": 3},
			{"itemtype": "Document", "items_id": 8},
			{"itemtype": "Document", "items_id": 9}
		]`))
	})

	mux.HandleFunc("/Document/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		id := r.URL.Path[len("/Document/"):]
		if f.documentFail[id] {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		if r.Header.Get("Accept") == "application/octet-stream" {
			w.Write([]byte("raw-bytes-" + id))
			return
		}
		switch id {
		case "7":
			w.Write([]byte(`{"id": 7, "filename": "screenshot.png", "mime": "image/png"}`))
		case "8":
			w.Write([]byte(`{"id": 8, "filename": "", "mime": "text/plain"}`))
		case "9":
			w.Write([]byte(`{"id": 9, "filename": "log.txt", "mime": "text/plain"}`))
		default:
			http.NotFound(w, r)
		}
	})

	return mux
}

func (f *fakeGLPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(context.Background()))
}

func (f *fakeGLPI) requestsTo(path string) []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*http.Request
	for _, r := range f.requests {
		if r.URL.Path == path {
			matched = append(matched, r)
		}
	}
	return matched
}

func newTestClient(t *testing.T, baseURL string, opts ...ClientOption) *Client {
	t.Helper()
	options := append([]ClientOption{
		WithUserToken("user-token"),
		WithLogger(arbor.NewLogger()),
		WithRateLimit(1000),
		WithRetryPolicy(common.RetryPolicy{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffCap: 2 * time.Millisecond}),
	}, opts...)
	client, err := NewClient(baseURL, "app-token", options...)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient("", "app")
	assert.Error(t, err)

	_, err = NewClient("https://glpi.example.com/apirest.php", "")
	assert.Error(t, err)
}

func TestInitSession_DropsUserTokenAfterSuccess(t *testing.T) {
	fake := newFakeGLPI()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.True(t, client.InitSession(context.Background()))
	require.NotNil(t, client.Session())
	assert.Equal(t, "sess-123", client.Session().Token)

	initReqs := fake.requestsTo("/initSession")
	require.Len(t, initReqs, 1)
	assert.Equal(t, "user_token user-token", initReqs[0].Header.Get("Authorization"))

	ticket := client.GetTicket(context.Background(), 42)
	require.NotNil(t, ticket)

	ticketReqs := fake.requestsTo("/Ticket/42")
	require.Len(t, ticketReqs, 1)
	assert.Empty(t, ticketReqs[0].Header.Get("Authorization"))
	assert.Equal(t, "sess-123", ticketReqs[0].Header.Get("Session-Token"))
	assert.Equal(t, "app-token", ticketReqs[0].Header.Get("App-Token"))
}

func TestInitSession_EmptyTokenFails(t *testing.T) {
	fake := newFakeGLPI()
	fake.sessionToken = ""
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.False(t, client.InitSession(context.Background()))
	assert.Nil(t, client.Session())
}

func TestInitSession_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.False(t, client.InitSession(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetTicket_WithDocuments(t *testing.T) {
	fake := newFakeGLPI()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	ticket := client.GetTicket(context.Background(), 42)
	require.NotNil(t, ticket)

	assert.Equal(t, 42, ticket.ID)
	assert.Equal(t, "Printer offline", ticket.Name)
	assert.Contains(t, ticket.Content, "printer is offline")

	// Document 8 has no filename and is skipped; Computer items are ignored
	require.Len(t, ticket.Documents, 2)
	assert.Equal(t, 7, ticket.Documents[0].ID)
	assert.Equal(t, "screenshot.png", ticket.Documents[0].Filename)
	assert.Equal(t, server.URL+"/Document/7", ticket.Documents[0].DownloadURL)
	assert.Equal(t, 9, ticket.Documents[1].ID)

	docReqs := fake.requestsTo("/Document/7")
	require.NotEmpty(t, docReqs)
	assert.Equal(t, "true", docReqs[0].URL.Query().Get("expand_dropdowns"))
}

func TestGetTicket_NotFoundReturnsNil(t *testing.T) {
	fake := newFakeGLPI()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.Nil(t, client.GetTicket(context.Background(), 404))
}

func TestGetTicket_SessionFailureReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.Nil(t, client.GetTicket(context.Background(), 42))
}

func TestGetTicketDocuments_LinkedItemsFailureReturnsEmpty(t *testing.T) {
	fake := newFakeGLPI()
	fake.linkedItemsFail = true
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	documents := client.GetTicketDocuments(context.Background(), 42)

	require.NotNil(t, documents)
	assert.Empty(t, documents)
	assert.Len(t, fake.requestsTo("/Ticket/42/Item_Ticket"), 3, "retried up to the attempt limit")
}

func TestGetTicketDocuments_SkipsFailedLookup(t *testing.T) {
	fake := newFakeGLPI()
	fake.documentFail["7"] = true
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	documents := client.GetTicketDocuments(context.Background(), 42)

	require.Len(t, documents, 1)
	assert.Equal(t, "log.txt", documents[0].Filename)
	assert.Len(t, fake.requestsTo("/Document/7"), 1, "404 is not retried")
}

func TestKillSession(t *testing.T) {
	fake := newFakeGLPI()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)

	// No session: nothing to do
	assert.True(t, client.KillSession(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fake.killCalls))

	require.True(t, client.InitSession(context.Background()))
	assert.True(t, client.KillSession(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.killCalls))
	assert.Nil(t, client.Session())

	killReqs := fake.requestsTo("/killSession")
	require.Len(t, killReqs, 1)
	assert.Equal(t, "sess-123", killReqs[0].Header.Get("Session-Token"))
}

func TestKillSession_FailureClearsSession(t *testing.T) {
	var killCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/initSession" {
			w.Write([]byte(`{"session_token":"abc"}`))
			return
		}
		atomic.AddInt32(&killCalls, 1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.True(t, client.InitSession(context.Background()))

	assert.False(t, client.KillSession(context.Background()))
	assert.Nil(t, client.Session())
	assert.Equal(t, int32(1), atomic.LoadInt32(&killCalls), "kill is best-effort and not retried")
}

func TestDownloadDocument(t *testing.T) {
	fake := newFakeGLPI()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	documents := client.GetTicketDocuments(context.Background(), 42)
	require.NotEmpty(t, documents)

	data, err := client.DownloadDocument(context.Background(), documents[0])
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes-7", string(data))
}

func TestNewFactory_BuildsIndependentClients(t *testing.T) {
	factory := NewFactory(common.GLPIConfig{
		BaseURL:  "https://glpi.example.com/apirest.php",
		AppToken: "app",
		Timeout:  "5s",
	}, common.NewDefaultRetryPolicy())

	first, err := factory(arbor.NewLogger())
	require.NoError(t, err)
	second, err := factory(arbor.NewLogger())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 5*time.Second, first.(*Client).httpClient.Timeout)
}

func TestNewFactory_DoesNotMutateSharedHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	factory := NewFactory(common.GLPIConfig{
		BaseURL:  "https://glpi.example.com/apirest.php",
		AppToken: "app",
		Timeout:  "5s",
	}, common.NewDefaultRetryPolicy(), WithHTTPClient(shared))

	var wg sync.WaitGroup
	clients := make([]*Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := factory(arbor.NewLogger())
			if assert.NoError(t, err) {
				clients[i] = client.(*Client)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, time.Minute, shared.Timeout, "shared client keeps its own timeout")
	for _, client := range clients {
		require.NotNil(t, client)
		assert.NotSame(t, shared, client.httpClient)
		assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 503, Message: "down", Endpoint: "/Ticket/1"}
	assert.Contains(t, err.Error(), "status 503")
	assert.True(t, err.Retryable())
	assert.False(t, (&APIError{StatusCode: 404}).Retryable())
	assert.True(t, (&APIError{StatusCode: 429}).Retryable())
}
