package signal

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/okdoc/teleconsult/internal/core"
)

var validate = validator.New()

func (ctl *WSController) handlePatientJoin(sid core.SessionID, conn *WsConn, data []byte) {
	type joinPayload struct {
		Type     string `json:"type"`
		Name     string `json:"name" validate:"required"`
		Age      int    `json:"age" validate:"gte=0,lte=150"`
		Symptoms string `json:"symptoms" validate:"required"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad patient-join payload")
		ctl.sendError(conn, "Failed to join as patient")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("patient-join validation failed")
		ctl.sendError(conn, "Failed to join as patient")
		return
	}

	ctl.Orch.JoinPatient(sid, conn, p.Name, p.Age, p.Symptoms)
}

func (ctl *WSController) handleDoctorJoin(sid core.SessionID, conn *WsConn, data []byte) {
	type joinPayload struct {
		Type           string `json:"type"`
		Name           string `json:"name" validate:"required"`
		Specialization string `json:"specialization" validate:"required"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad doctor-join payload")
		ctl.sendError(conn, "Failed to join as doctor")
		return
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("doctor-join validation failed")
		ctl.sendError(conn, "Failed to join as doctor")
		return
	}

	ctl.Orch.JoinDoctor(sid, conn, p.Name, p.Specialization)
}
