package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"traffic-sensor-stream/analytics"
	"traffic-sensor-stream/models"
	"traffic-sensor-stream/realtime"
	"traffic-sensor-stream/service"
	"traffic-sensor-stream/store"
)

type liveFrame struct {
	Topic string          `json:"topic"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestLiveUpdatesThroughRouter(t *testing.T) {
	hub := realtime.NewHub(nil, nil)
	st := store.NewMemoryStore()

	var svc *service.SensorService
	monitor := analytics.NewMonitor(analytics.MonitorConfig{
		Thresholds: models.DefaultThresholds(),
		OnAlert:    func(a models.SensorAlert) { svc.PublishAlert(a) },
	}, nil)
	svc = service.NewSensorService(st, nil, service.WithPublisher(hub), service.WithMonitor(monitor))

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Sensors: NewSensorHandler(svc, nil),
		Live:    hub,
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		monitor.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": realtime.TopicSensorUpdates}))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": realtime.TopicSensorAlerts}))
	require.Eventually(t, func() bool {
		return hub.Subscribers(realtime.TopicSensorUpdates) == 1 && hub.Subscribers(realtime.TopicSensorAlerts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// sensor1 is below the default minimum of 10.
	created := postReading(t, srv, "/sensors", `{"sensor1":5,"sensor2":50,"sensor3":60,"sensor4":70,"timestamp":1717228800}`)
	require.Equal(t, http.StatusCreated, created.StatusCode)

	frames := map[string]liveFrame{}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(frames) < 2 {
		var f liveFrame
		require.NoError(t, conn.ReadJSON(&f))
		frames[f.Event] = f
	}

	data, ok := frames[realtime.EventSensorData]
	require.True(t, ok)
	require.Equal(t, realtime.TopicSensorUpdates, data.Topic)
	var reading models.StoredReading
	require.NoError(t, json.Unmarshal(data.Data, &reading))
	require.Equal(t, int64(1), reading.ID)
	require.Equal(t, 5.0, reading.Sensor1)

	alertFrame, ok := frames[realtime.EventSensorAlert]
	require.True(t, ok)
	require.Equal(t, realtime.TopicSensorAlerts, alertFrame.Topic)
	var alert models.SensorAlert
	require.NoError(t, json.Unmarshal(alertFrame.Data, &alert))
	require.Equal(t, models.SensorAlert{
		ReadingID: 1,
		SensorID:  1,
		Value:     5,
		Threshold: 10,
		Type:      models.AlertBelowMin,
		Timestamp: 1717228800,
	}, alert)
}
