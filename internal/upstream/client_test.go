package upstream_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northlake-dev/msgbridge/internal/reqtransform"
	"github.com/northlake-dev/msgbridge/internal/upstream"
)

func TestClient_Do_AttachesSelectedHeadersAndExcludesTheOther(t *testing.T) {
	var gotAuth, gotXAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotXAPIKey = r.Header.Get("x-api-key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, 0)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions", nil)
	resp, err := c.Do(req, []reqtransform.AuthHeader{{Name: "Authorization", Value: "Bearer testkey"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer testkey" {
		t.Fatalf("got Authorization %q", gotAuth)
	}
	if gotXAPIKey != "" {
		t.Fatalf("want no x-api-key header, got %q", gotXAPIKey)
	}
}

func TestClient_ProbeModels_2xxIsNotOpenAIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, 0)
	status, isOpenAIErr, err := c.ProbeModels(context.Background(), srv.URL, "key")
	if err != nil {
		t.Fatal(err)
	}
	if status != 200 || isOpenAIErr {
		t.Fatalf("got status=%d isOpenAIErr=%v", status, isOpenAIErr)
	}
}

func TestClient_ProbeModels_401WithErrorEnvelopeDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_api_key","message":"bad key"}}`))
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, 0)
	status, isOpenAIErr, err := c.ProbeModels(context.Background(), srv.URL, "key")
	if err != nil {
		t.Fatal(err)
	}
	if status != 401 || !isOpenAIErr {
		t.Fatalf("got status=%d isOpenAIErr=%v", status, isOpenAIErr)
	}
}

func TestIdleTimeoutReader_ForceClosesAfterInactivity(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := upstream.NewIdleTimeoutReader(pr, 20*time.Millisecond)

	buf := make([]byte, 16)
	_, err := r.Read(buf)
	if err == nil {
		t.Fatal("want error once the idle timer force-closes the pipe")
	}
	if !r.TimedOut() {
		t.Fatal("want TimedOut true after a forced close")
	}
}

func TestIdleTimeoutReader_ResetsTimerOnEachRead(t *testing.T) {
	pr, pw := io.Pipe()

	r := upstream.NewIdleTimeoutReader(pr, 40*time.Millisecond)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(15 * time.Millisecond)
			pw.Write([]byte("x"))
		}
		pw.Close()
		close(done)
	}()

	buf := make([]byte, 1)
	for {
		_, err := r.Read(buf)
		if err != nil {
			break
		}
	}
	<-done

	if r.TimedOut() {
		t.Fatal("want TimedOut false for a stream that kept making progress within the deadline")
	}
}
