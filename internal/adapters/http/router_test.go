package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	router "github.com/okdoc/teleconsult/internal/adapters/http"
	"github.com/okdoc/teleconsult/internal/app"
	"github.com/okdoc/teleconsult/internal/config"
	"github.com/okdoc/teleconsult/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "test",
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		Secret:     "test-secret",
	}
	orch := app.NewOrchestrator(store.NewMemory())
	srv := httptest.NewServer(router.SetupRouter(context.Background(), cfg, orch))
	t.Cleanup(srv.Close)
	return srv, orch
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 0, status["connectedDoctors"])
	assert.Equal(t, 0, status["waitingPatients"])
	assert.Equal(t, 0, status["activeConsultations"])
}

func TestPatientJoinOverWebSocket(t *testing.T) {
	srv, orch := newTestServer(t)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "patient-join",
		"name":     "Ana",
		"age":      30,
		"symptoms": "fever",
	}))

	ev := readEvent(t, conn)
	assert.Equal(t, "patient-confirmed", ev["type"])
	assert.NotEmpty(t, ev["patientId"])

	_, waiting, _ := orch.Counts()
	assert.Equal(t, 1, waiting)
}

func TestPatientJoinValidationError(t *testing.T) {
	srv, orch := newTestServer(t)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "patient-join",
		"name": "",
		"age":  200,
	}))

	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev["type"])
	assert.Equal(t, "Failed to join as patient", ev["message"])

	_, waiting, _ := orch.Counts()
	assert.Equal(t, 0, waiting)
}

func TestDoctorJoinReceivesWaitingList(t *testing.T) {
	srv, _ := newTestServer(t)

	patient := dialWS(t, srv)
	require.NoError(t, patient.WriteJSON(map[string]any{
		"type": "patient-join", "name": "Ana", "age": 30, "symptoms": "fever",
	}))
	readEvent(t, patient) // patient-confirmed

	doctor := dialWS(t, srv)
	require.NoError(t, doctor.WriteJSON(map[string]any{
		"type": "doctor-join", "name": "Dr. Lee", "specialization": "general",
	}))

	ev := readEvent(t, doctor)
	assert.Equal(t, "doctor-confirmed", ev["type"])

	ev = readEvent(t, doctor)
	require.Equal(t, "waiting-patients", ev["type"])
	patients, ok := ev["patients"].([]any)
	require.True(t, ok)
	require.Len(t, patients, 1)
	first, ok := patients[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ana", first["name"])
}

func TestPatientDisconnectNotifiesDoctors(t *testing.T) {
	srv, _ := newTestServer(t)

	doctor := dialWS(t, srv)
	require.NoError(t, doctor.WriteJSON(map[string]any{
		"type": "doctor-join", "name": "Dr. Lee", "specialization": "general",
	}))
	readEvent(t, doctor) // doctor-confirmed
	readEvent(t, doctor) // waiting-patients (empty)

	patient := dialWS(t, srv)
	require.NoError(t, patient.WriteJSON(map[string]any{
		"type": "patient-join", "name": "Ana", "age": 30, "symptoms": "fever",
	}))
	readEvent(t, patient) // patient-confirmed

	ev := readEvent(t, doctor)
	assert.Equal(t, "new-patient", ev["type"])

	require.NoError(t, patient.Close())

	ev = readEvent(t, doctor)
	assert.Equal(t, "patient-disconnected", ev["type"])
	assert.NotEmpty(t, ev["patientId"])
}
