package hub

import (
	"log"

	"github.com/z4fwan/z.om/internal/metrics"
	"github.com/z4fwan/z.om/internal/protocol"
	"github.com/z4fwan/z.om/internal/report"
)

// Report error codes sent back to the reporter.
const (
	// ErrCodeNoTarget means the reporter has no partner, or the partner
	// never registered an identity, so there is nobody to file against.
	ErrCodeNoTarget = "no_identifiable_target"

	// ErrCodeInvalidReport means the report failed validation.
	ErrCodeInvalidReport = "invalid_report"

	// ErrCodePersistFailed means the persistence collaborator rejected or
	// failed to store the report.
	ErrCodePersistFailed = "persist_failed"

	// ErrCodeUnavailable means no report sink is wired.
	ErrCodeUnavailable = "report_unavailable"
)

// handleReport resolves the reporter's current partner to a durable identity,
// builds the report with its capture context, and hands it to the sink. The
// outcome comes back onto the event loop via finishReport; only the reporter
// ever hears about it.
func (h *Hub) handleReport(connID string, data protocol.ReportData) {
	if _, ok := h.conns[connID]; !ok {
		return
	}

	partnerConn, ok := h.pairs[connID]
	if !ok {
		h.sendReportError(connID, ErrCodeNoTarget, "no active partner to report")
		return
	}

	reported := h.registry.identityOf(partnerConn)
	if reported == "" {
		h.sendReportError(connID, ErrCodeNoTarget, "partner has no registered identity")
		return
	}

	reporter := h.registry.identityOf(connID)
	if reporter == "" {
		reporter = data.ReporterID
	}

	r := &report.Report{
		Reporter:    reporter,
		Reported:    reported,
		Reason:      data.Reason,
		Description: data.Description,
		Category:    data.Category,
		Context: report.Context{
			ChatType:      report.ChatTypeStranger,
			ConnectionIDs: []string{connID, partnerConn},
		},
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		h.sendReportError(connID, ErrCodeInvalidReport, err.Error())
		return
	}

	if h.sink == nil {
		h.sendReportError(connID, ErrCodeUnavailable, "report service unavailable")
		return
	}

	h.sink.Submit(r, func(err error) {
		h.enqueue(func() { h.finishReport(connID, err) })
	})
}

// finishReport runs back on the event loop once persistence completes. A
// reporter who disconnected in the meantime simply hears nothing.
func (h *Hub) finishReport(connID string, err error) {
	if err != nil {
		metrics.ReportsTotal.WithLabelValues("error").Inc()
		log.Printf("hub: report from %s failed: %v", connID, err)
		if _, ok := h.conns[connID]; ok {
			h.sendReportError(connID, ErrCodePersistFailed, "failed to submit report")
		}
		return
	}

	metrics.ReportsTotal.WithLabelValues("success").Inc()
	if _, ok := h.conns[connID]; ok {
		h.send(connID, protocol.EventReportSuccess, protocol.ReportSuccessData{
			Message: "Report submitted",
		})
	}
}

func (h *Hub) sendReportError(connID, code, msg string) {
	metrics.ReportsTotal.WithLabelValues("rejected").Inc()
	h.send(connID, protocol.EventReportError, protocol.ReportErrorData{
		Code:  code,
		Error: msg,
	})
}
