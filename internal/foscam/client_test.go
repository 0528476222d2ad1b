package foscam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foscam2mqtt/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCommand struct {
	command string
	outcome string
}

type fakeRecorder struct {
	calls []recordedCommand
}

func (f *fakeRecorder) DeviceCommand(command, outcome string, _ time.Duration) {
	f.calls = append(f.calls, recordedCommand{command: command, outcome: outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := models.FoscamConfig{User: "admin", Password: "s3cret", Timeout: time.Second}
	return NewClient(cfg, append([]ClientOption{WithBaseURL(ts.URL)}, opts...)...)
}

func TestClient_InvokeSendsCredentialsAndParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/CGIProxy.fcgi", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "admin", q.Get("usr"))
		assert.Equal(t, "s3cret", q.Get("pwd"))
		assert.Equal(t, "setAudioVolume", q.Get("cmd"))
		assert.Equal(t, "40", q.Get("volume"))
		fmt.Fprint(w, "<CGI_Result><result>0</result></CGI_Result>")
	})

	body, err := client.Invoke(context.Background(), "setAudioVolume", map[string]string{"volume": "40"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "<result>0</result>")
}

func TestClient_QueryParsesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<CGI_Result>
	<result>0</result>
	<isEnable>1</isEnable>
	<linkage>14</linkage>
</CGI_Result>`)
	})

	res, err := client.Query(context.Background(), "getMotionDetectConfig", nil)
	require.NoError(t, err)

	linkage, err := res.Int("linkage")
	require.NoError(t, err)
	assert.Equal(t, 14, linkage)
	assert.Equal(t, "1", res["isEnable"])
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		sentinel error
		kind     ErrorKind
	}{
		{
			name: "HTTP Status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			sentinel: ErrHTTPStatus,
			kind:     KindHTTPStatus,
		},
		{
			name: "Wrong Envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html><body>login</body></html>")
			},
			sentinel: ErrMalformedResponse,
			kind:     KindMalformedResponse,
		},
		{
			name: "Missing Result Code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<CGI_Result><volume>10</volume></CGI_Result>")
			},
			sentinel: ErrMalformedResponse,
			kind:     KindMalformedResponse,
		},
		{
			name: "Rejected Command",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<CGI_Result><result>-2</result></CGI_Result>")
			},
			sentinel: ErrCommandFailed,
			kind:     KindCommandFailed,
		},
		{
			name: "Timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
			},
			sentinel: ErrTimeout,
			kind:     KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler, WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))

			_, err := client.Query(context.Background(), "getAudioVolume", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var derr *DeviceError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Equal(t, "getAudioVolume", derr.Command)
			assert.NotContains(t, err.Error(), "s3cret")
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	client := NewClient(models.FoscamConfig{User: "admin", Password: "s3cret", Timeout: time.Second}, WithBaseURL(base))
	_, err := client.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestClient_RecordsOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cmd") {
		case "rebootSystem":
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "setHdrMode":
			fmt.Fprint(w, "<CGI_Result><result>-3</result></CGI_Result>")
			return
		}
		fmt.Fprint(w, "<CGI_Result><result>0</result><model>VD1</model><hardwareVer>1.0</hardwareVer><firmwareVer>2.1</firmwareVer></CGI_Result>")
	}, WithRecorder(rec))

	info, err := client.DeviceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0", info.Hardware)
	assert.Equal(t, "2.1", info.Firmware)

	_, err = client.Invoke(context.Background(), "rebootSystem", nil)
	require.Error(t, err)
	_, err = client.Query(context.Background(), "setHdrMode", map[string]string{"mode": "1"})
	require.Error(t, err)

	assert.Equal(t, []recordedCommand{
		{command: "getDevInfo", outcome: "ok"},
		{command: "rebootSystem", outcome: "http_status"},
		{command: "setHdrMode", outcome: "command_failed"},
	}, rec.calls)
}
