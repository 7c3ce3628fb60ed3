package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsyhq/opsy/model"
)

func configFor(t *testing.T, srv *httptest.Server) model.BackendConfig {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return model.BackendConfig{Protocol: "http", Host: u.Hostname(), Port: port, Timeout: 5}
}

func TestConfigure(t *testing.T) {
	svc := &model.MonitoringService{BackendKind: model.BackendPrometheus, BackendConfig: model.BackendConfig{Host: "am"}}
	require.NoError(t, Configure(svc))
	assert.Equal(t, "http://am:9093/api/v2", svc.BackendConfig.BaseURL())
	assert.Equal(t, model.DefaultPollInterval, svc.BackendConfig.Interval)
	assert.Equal(t, model.DefaultRequestTimeout, svc.BackendConfig.Timeout)

	svc = &model.MonitoringService{BackendKind: model.BackendSensu, BackendConfig: model.BackendConfig{Host: "sensu", Protocol: "https", Interval: 10}}
	require.NoError(t, Configure(svc))
	assert.Equal(t, "https://sensu:4567", svc.BackendConfig.BaseURL())
	assert.Equal(t, 10, svc.BackendConfig.Interval)

	err := Configure(&model.MonitoringService{BackendKind: "nagios", BackendConfig: model.BackendConfig{Host: "x"}})
	assert.ErrorIs(t, err, ErrUnknownBackend)
	err = Configure(&model.MonitoringService{BackendKind: model.BackendSensu})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = Configure(&model.MonitoringService{BackendKind: model.BackendSensu, BackendConfig: model.BackendConfig{Host: "x", Protocol: "ftp"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New("nagios")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Equal(t, []model.BackendKind{model.BackendPrometheus, model.BackendSensu}, Kinds())
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "opsy/test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/sensu/events":
			_, _ = w.Write([]byte(`[{"id":1}]`))
		case "/sensu/silenced":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := configFor(t, srv)
	cfg.Path = "/sensu/"
	cfg.Username, cfg.Password = "admin", "secret"

	c := NewClient("opsy/test")
	payloads, err := c.Fetch(context.Background(), cfg, []string{"events", "silenced"})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(payloads["events"]))
	assert.Equal(t, `[]`, string(payloads["silenced"]))

	// one failing resource fails the whole fetch
	_, err = c.Fetch(context.Background(), cfg, []string{"events", "stashes"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)

	cfg.Password = "wrong"
	_, err = c.Fetch(context.Background(), cfg, []string{"events"})
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := configFor(t, srv)
	cfg.Timeout = 1

	start := time.Now()
	_, err := NewClient("").Fetch(context.Background(), cfg, []string{"alerts"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := configFor(t, srv)
	srv.Close()

	_, err := NewClient("").Fetch(context.Background(), cfg, []string{"alerts"})
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFetchPayloadLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer srv.Close()

	old := maxPayloadSize
	defer func() { maxPayloadSize = old }()

	maxPayloadSize = 8
	_, err := NewClient("").Fetch(context.Background(), configFor(t, srv), []string{"events"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, http.StatusOK, netErr.StatusCode)

	maxPayloadSize = int64(len(`[{"id":1},{"id":2}]`))
	payloads, err := NewClient("").Fetch(context.Background(), configFor(t, srv), []string{"events"})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1},{"id":2}]`, string(payloads["events"]))
}

func TestSensuDecode(t *testing.T) {
	b, err := New(model.BackendSensu)
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "silenced"}, b.Resources())

	batch, err := b.Decode(map[string][]byte{
		"events": []byte(`[
			{"client":{"name":"web1"},"check":{"name":"disk","status":2,"command":"check-disk","output":"95%","interval":60},"occurrences":3,"timestamp":1500000000},
			{"client":{"name":"web1"},"check":{"name":"load","status":1}},
			{"client":{"name":"web2"},"check":{"name":"disk","status":7}},
			{"client":{"name":"web2"},"check":{"name":"cpu","status":-1}},
			{"client":{"name":"web2"},"check":{"name":"mem"}},
			{"client":{"name":"web3"},"check":{"name":"ntp","status":"x"}},
			{"client":{"name":"web4"},"check":{"name":"disk","status":0},"silenced":true},
			{"client":{"name":"db1"},"check":{"name":"disk","status":0}},
			{"client":{"name":"db2"},"check":{"name":"disk","status":0}},
			{"check":{"name":"orphan","status":0}},
			{"client":{"name":42},"check":{"name":"typed"}},
			"garbage"
		]`),
		"silenced": []byte(`[{"subscription":"client:db1","check":""},{"subscription":"","check":"ntp"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Skipped)

	byKey := map[model.EventKey]model.CanonicalEvent{}
	for _, e := range batch.Events {
		byKey[e.Key()] = e
	}
	assert.Len(t, byKey, 6)

	disk := byKey[model.EventKey{HostName: "web1", CheckName: "disk"}]
	assert.Equal(t, model.EventStatusCritical, disk.Status)
	assert.Equal(t, "check-disk", disk.Command)
	assert.Equal(t, "95%", disk.Output)
	assert.Equal(t, 3, disk.Occurrences)
	assert.Equal(t, 60, disk.Interval)
	require.NotNil(t, disk.UpdatedAt)
	assert.Equal(t, int64(1500000000), disk.UpdatedAt.Unix())
	assert.Contains(t, disk.Raw, `"check-disk"`)

	assert.Equal(t, model.EventStatusWarning, byKey[model.EventKey{HostName: "web1", CheckName: "load"}].Status)
	assert.Equal(t, model.EventStatusUnknown, byKey[model.EventKey{HostName: "web2", CheckName: "disk"}].Status)
	assert.Equal(t, model.EventStatusUnknown, byKey[model.EventKey{HostName: "web2", CheckName: "cpu"}].Status)
	assert.Equal(t, model.EventStatusUnknown, byKey[model.EventKey{HostName: "web2", CheckName: "mem"}].Status)
	assert.Contains(t, byKey, model.EventKey{HostName: "db2", CheckName: "disk"})

	// silenced by flag, by client subscription and by check
	assert.NotContains(t, byKey, model.EventKey{HostName: "web4", CheckName: "disk"})
	assert.NotContains(t, byKey, model.EventKey{HostName: "db1", CheckName: "disk"})
	assert.NotContains(t, byKey, model.EventKey{HostName: "web3", CheckName: "ntp"})
}

func TestSensuDecodeFailures(t *testing.T) {
	b, err := New(model.BackendSensu)
	require.NoError(t, err)

	var decodeErr *DecodeError
	_, err = b.Decode(map[string][]byte{"events": []byte(`{"not":"an array"}`), "silenced": []byte(`[]`)})
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "events", decodeErr.Resource)

	_, err = b.Decode(map[string][]byte{"events": []byte(`[`), "silenced": []byte(`[]`)})
	require.ErrorAs(t, err, &decodeErr)

	_, err = b.Decode(map[string][]byte{"events": []byte(`[]`), "silenced": []byte(`nope`)})
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "silenced", decodeErr.Resource)

	_, err = b.Decode(map[string][]byte{})
	require.ErrorAs(t, err, &decodeErr)

	batch, err := b.Decode(map[string][]byte{"events": []byte(`[]`), "silenced": []byte(`[]`)})
	require.NoError(t, err)
	assert.Empty(t, batch.Events)
	assert.Zero(t, batch.Skipped)
}

func TestPrometheusDecode(t *testing.T) {
	b, err := New(model.BackendPrometheus)
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts"}, b.Resources())

	batch, err := b.Decode(map[string][]byte{"alerts": []byte(`[
		{"labels":{"instance":"node1:9100","alertname":"DiskFull"},
		 "annotations":{"value":"2","alertingRule":"disk > 90","description":"disk is full","activeSince":"2017-07-14T02:40:00Z"},
		 "startsAt":"2017-07-14T02:00:00Z","status":{"state":"active"}},
		{"labels":{"instance":"node2:9100","alertname":"HighLoad"},
		 "annotations":{"value":"9"},"startsAt":"2017-07-14T03:00:00Z","status":{"state":"active"}},
		{"labels":{"instance":"node3:9100","alertname":"Silenced"},
		 "annotations":{"value":"1"},"status":{"state":"suppressed"}},
		{"labels":{"alertname":"NoInstance"}},
		{"labels":{"instance":"node4:9100","alertname":"Unparsed"},"annotations":{}}
	]`)})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Skipped)
	require.Len(t, batch.Events, 3)

	full := batch.Events[0]
	assert.Equal(t, model.EventKey{HostName: "node1:9100", CheckName: "DiskFull"}, full.Key())
	assert.Equal(t, model.EventStatusCritical, full.Status)
	assert.Equal(t, "disk > 90", full.Command)
	assert.Equal(t, "disk is full", full.Output)
	require.NotNil(t, full.UpdatedAt)
	assert.Equal(t, time.Date(2017, 7, 14, 2, 40, 0, 0, time.UTC), *full.UpdatedAt)

	load := batch.Events[1]
	assert.Equal(t, model.EventStatusUnknown, load.Status)
	require.NotNil(t, load.UpdatedAt)
	assert.Equal(t, time.Date(2017, 7, 14, 3, 0, 0, 0, time.UTC), *load.UpdatedAt)

	assert.Equal(t, model.EventStatusUnknown, batch.Events[2].Status)
	assert.Nil(t, batch.Events[2].UpdatedAt)

	var decodeErr *DecodeError
	_, err = b.Decode(map[string][]byte{"alerts": []byte(`"alerts"`)})
	assert.ErrorAs(t, err, &decodeErr)
}

func TestPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/alerts", r.URL.Path)
		_, _ = w.Write([]byte(`[{"labels":{"instance":"node1","alertname":"Up"},"annotations":{"value":"0"}}]`))
	}))
	defer srv.Close()

	b, err := New(model.BackendPrometheus)
	require.NoError(t, err)
	cfg := configFor(t, srv)
	cfg.Path = "/api/v2"

	batch, err := NewClient("").Poll(context.Background(), b, cfg)
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, model.EventStatusOK, batch.Events[0].Status)
}

func TestErrorMessages(t *testing.T) {
	err := &NetworkError{URL: "http://x/events", StatusCode: 502}
	assert.Equal(t, "GET http://x/events: unexpected status 502", err.Error())

	cause := errors.New("connection refused")
	err = &NetworkError{URL: "http://x/events", Err: cause}
	assert.ErrorIs(t, err, cause)

	decodeErr := &DecodeError{Resource: "alerts", Err: cause}
	assert.Equal(t, "decode alerts: connection refused", decodeErr.Error())
}
