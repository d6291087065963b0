package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewHttpServer(NewMemoryStore()).Router())
	t.Cleanup(ts.Close)
	return ts
}

func postMessage(t *testing.T, ts *httptest.Server, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(ts.URL+"/messages", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSendAssignsMonotonicIDs(t *testing.T) {
	ts := newTestServer(t)

	first := postMessage(t, ts, `{"author":"a","sender_identity":"c1","text":"one","image_ref":[],"reply_to":[]}`)
	second := postMessage(t, ts, `{"author":"a","sender_identity":"c1","text":"two","image_ref":[],"reply_to":[]}`)

	require.Equal(t, float64(1), first["id"])
	require.Equal(t, float64(2), second["id"])
	require.Less(t, first["timestamp"].(float64), second["timestamp"].(float64))
}

func TestOptionalFieldsTravelAsArrays(t *testing.T) {
	ts := newTestServer(t)

	plain := postMessage(t, ts, `{"author":"a","sender_identity":"c1","text":"no extras","image_ref":[],"reply_to":[]}`)
	require.Equal(t, []any{}, plain["image_ref"])
	require.Equal(t, []any{}, plain["reply_to"])

	reply := postMessage(t, ts, `{"author":"a","sender_identity":"c1","text":"re","image_ref":[],"reply_to":[1]}`)
	require.Equal(t, []any{float64(1)}, reply["reply_to"])
}

func TestEmptyMessageRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/messages", "application/json",
		bytes.NewReader([]byte(`{"author":"a","sender_identity":"c1","text":"","image_ref":[],"reply_to":[]}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaginationFromNewestEnd(t *testing.T) {
	ts := newTestServer(t)
	for i := 1; i <= 5; i++ {
		postMessage(t, ts, fmt.Sprintf(`{"author":"a","sender_identity":"c1","text":"m%d","image_ref":[],"reply_to":[]}`, i))
	}

	get := func(page, size int) map[string]any {
		resp, err := http.Get(fmt.Sprintf("%s/messages?page=%d&size=%d", ts.URL, page, size))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	page1 := get(1, 2)
	require.Equal(t, float64(5), page1["total"])
	require.Equal(t, float64(3), page1["total_pages"])
	msgs := page1["messages"].([]any)
	require.Len(t, msgs, 2)
	// newest two, ascending inside the page
	require.Equal(t, float64(4), msgs[0].(map[string]any)["id"])
	require.Equal(t, float64(5), msgs[1].(map[string]any)["id"])

	page3 := get(3, 2)
	msgs = page3["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, float64(1), msgs[0].(map[string]any)["id"])
}

func TestMessageCount(t *testing.T) {
	ts := newTestServer(t)
	postMessage(t, ts, `{"author":"a","sender_identity":"c1","text":"x","image_ref":[],"reply_to":[]}`)

	resp, err := http.Get(ts.URL + "/messages/count")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out["count"])
}

func TestImageUploadFetchRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	blob := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}

	resp, err := http.Post(ts.URL+"/images", "application/octet-stream", bytes.NewReader(blob))
	require.NoError(t, err)
	var up map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	resp.Body.Close()
	require.Equal(t, int64(1), up["ref"])

	resp, err = http.Get(fmt.Sprintf("%s/images/%d", ts.URL, up["ref"]))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, blob, data)

	resp, err = http.Get(ts.URL + "/images/999")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfileLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/profiles/client-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/profiles/client-1",
		bytes.NewReader([]byte(`{"nickname":"alice","color":"#f00"}`)))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/profiles/client-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Equal(t, "alice", p["nickname"])
}
