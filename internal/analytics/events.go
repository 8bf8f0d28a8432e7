package analytics

import (
	"github.com/posthog/posthog-go"
)

// Event names.
const (
	EventSignedIn              = "user_signed_in"
	EventSignedOut             = "user_signed_out"
	EventTemplateUploaded      = "template_uploaded"
	EventTemplateDeleted       = "template_deleted"
	EventProviderConnected     = "provider_connected"
	EventProviderDisconnected  = "provider_disconnected"
	EventOptimizationSubmitted = "optimization_submitted"
	EventOptimizationCompleted = "optimization_completed"
	EventOptimizationFailed    = "optimization_failed"
	EventResumeRecompiled      = "resume_recompiled"
	EventATSAnalyzed           = "ats_analyzed"
)

func EmitSignedIn(client Enqueuer, userID, email, name string) {
	client.Enqueue(posthog.Identify{
		DistinctId: userID,
		Properties: map[string]interface{}{
			"email": email,
			"name":  name,
		},
	})
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventSignedIn,
	})
}

func EmitSignedOut(client Enqueuer, userID string) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventSignedOut,
	})
}

func EmitTemplateUploaded(client Enqueuer, userID, templateID string, sizeBytes int64) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventTemplateUploaded,
		Properties: map[string]interface{}{
			"template_id": templateID,
			"size_bytes":  sizeBytes,
		},
	})
}

func EmitTemplateDeleted(client Enqueuer, userID, templateID string) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventTemplateDeleted,
		Properties: map[string]interface{}{
			"template_id": templateID,
		},
	})
}

func EmitProviderConnected(client Enqueuer, userID, provider, model string) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventProviderConnected,
		Properties: map[string]interface{}{
			"provider": provider,
			"model":    model,
		},
	})
}

func EmitProviderDisconnected(client Enqueuer, userID string) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventProviderDisconnected,
	})
}

func EmitOptimizationSubmitted(client Enqueuer, userID, jobID, provider, model string, coverLetter, coldEmail bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventOptimizationSubmitted,
		Properties: map[string]interface{}{
			"optimization_id":       jobID,
			"provider":              provider,
			"model":                 model,
			"generate_cover_letter": coverLetter,
			"generate_cold_email":   coldEmail,
		},
	})
}

func EmitOptimizationCompleted(client Enqueuer, userID, jobID string, processingSeconds float64, cached bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventOptimizationCompleted,
		Properties: map[string]interface{}{
			"optimization_id":         jobID,
			"processing_time_seconds": processingSeconds,
			"cached":                  cached,
		},
	})
}

func EmitOptimizationFailed(client Enqueuer, userID, jobID, message string) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventOptimizationFailed,
		Properties: map[string]interface{}{
			"optimization_id": jobID,
			"message":         message,
		},
	})
}

func EmitResumeRecompiled(client Enqueuer, userID, jobID string, success bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: userID,
		Event:      EventResumeRecompiled,
		Properties: map[string]interface{}{
			"optimization_id": jobID,
			"success":         success,
		},
	})
}

// EmitATSAnalyzed records an ATS check. Signed-out checks use an anonymous id.
func EmitATSAnalyzed(client Enqueuer, distinctID, fileType string, score int, authenticated bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      EventATSAnalyzed,
		Properties: map[string]interface{}{
			"file_type":     fileType,
			"score":         score,
			"authenticated": authenticated,
		},
	})
}
