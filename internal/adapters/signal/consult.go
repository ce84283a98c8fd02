package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
	"github.com/okdoc/teleconsult/internal/domain"
)

// Mid-consultation handlers drop failures silently toward the client,
// matching the event surface: only join failures get an error notice.

func (ctl *WSController) handleAcceptPatient(sid core.SessionID, data []byte) {
	type acceptPayload struct {
		Type      string               `json:"type"`
		PatientID domain.ParticipantID `json:"patientId"`
	}
	var p acceptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad accept-patient payload")
		return
	}
	if _, err := ctl.Orch.AcceptPatient(sid, p.PatientID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("accept-patient failed")
	}
}

func (ctl *WSController) handleSendMessage(sid core.SessionID, data []byte) {
	type messagePayload struct {
		Type           string                `json:"type"`
		ConsultationID domain.ConsultationID `json:"consultationId"`
		Message        string                `json:"message"`
		SenderType     domain.Role           `json:"senderType"`
	}
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send-message payload")
		return
	}
	if _, err := ctl.Orch.SendMessage(sid, p.ConsultationID, p.Message, p.SenderType); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("send-message dropped")
	}
}

func (ctl *WSController) handleSignalRelay(sid core.SessionID, eventType string, data []byte) {
	type relayPayload struct {
		Type           string                `json:"type"`
		ConsultationID domain.ConsultationID `json:"consultationId"`
		Payload        json.RawMessage       `json:"payload"`
		SenderType     domain.Role           `json:"senderType"`
	}
	var p relayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", eventType).Msg("bad relay payload")
		return
	}
	if err := ctl.Orch.RelaySignal(sid, p.ConsultationID, eventType, p.Payload, p.SenderType); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("event", eventType).Msg("relay dropped")
	}
}

func (ctl *WSController) handleVideoToggle(sid core.SessionID, data []byte, active bool) {
	type videoPayload struct {
		Type           string                `json:"type"`
		ConsultationID domain.ConsultationID `json:"consultationId"`
		SenderType     domain.Role           `json:"senderType"`
	}
	var p videoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad video-call payload")
		return
	}
	if err := ctl.Orch.SetVideo(sid, p.ConsultationID, active, p.SenderType); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("video toggle dropped")
	}
}

func (ctl *WSController) handleEndConsultation(sid core.SessionID, data []byte) {
	type endPayload struct {
		Type           string                `json:"type"`
		ConsultationID domain.ConsultationID `json:"consultationId"`
	}
	var p endPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad end-consultation payload")
		return
	}
	if err := ctl.Orch.EndConsultation(p.ConsultationID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("end-consultation failed")
	}
}
