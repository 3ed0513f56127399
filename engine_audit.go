package geoAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/geoAuth/session"
)

const (
	auditEventLoginSuccess    = "login_success"
	auditEventLoginRejected   = "login_rejected"
	auditEventLogoutManual    = "logout_manual"
	auditEventLogoutAuto      = "logout_auto"
	auditEventLogoutReconcile = "logout_reconcile"
	auditEventMonitorStarted  = "monitor_started"
	auditEventMonitorStopped  = "monitor_stopped"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrPermissionRequired  AuditErrorCode = "permission_required"
	auditErrServicesDisabled    AuditErrorCode = "location_services_disabled"
	auditErrLocationUnavailable AuditErrorCode = "location_unavailable"
	auditErrOutsidePerimeter    AuditErrorCode = "outside_perimeter"
	auditErrSessionWriteFailed  AuditErrorCode = "session_write_failed"
	auditErrMonitorUnavailable  AuditErrorCode = "monitor_unavailable"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	monitorSession string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		MonitorSession: monitorSession,
		Success:        success,
		Metadata:       metadata,
	}
	if reason, ok := metadata["reason"]; ok {
		event.Reason = reason
		delete(metadata, "reason")
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPermissionRequired):
		return auditErrPermissionRequired
	case errors.Is(err, ErrLocationServicesDisabled):
		return auditErrServicesDisabled
	case errors.Is(err, ErrLocationUnavailable):
		return auditErrLocationUnavailable
	case errors.Is(err, ErrOutsidePerimeter):
		return auditErrOutsidePerimeter
	case errors.Is(err, ErrSessionWriteFailed):
		return auditErrSessionWriteFailed
	case errors.Is(err, ErrMonitorUnavailable):
		return auditErrMonitorUnavailable
	case errors.Is(err, session.ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
