package endpoints

import (
	"github.com/jackzampolin/paperpulse/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// Tracker is shared by the digest run and status endpoints.
	Tracker *DigestTracker
	// PDFBase overrides ArxivPDFBase for parse-pdf.
	PDFBase string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	if cfg.Tracker == nil {
		cfg.Tracker = &DigestTracker{}
	}
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Paper endpoints
		&ParsePDFEndpoint{PDFBase: cfg.PDFBase},
		&SearchPapersEndpoint{},
		&AnalyzePaperEndpoint{},

		// Digest endpoints
		&RunDigestEndpoint{Tracker: cfg.Tracker},
		&DigestStatusEndpoint{Tracker: cfg.Tracker},

		// Subscription endpoints
		&SetSubscriptionActiveEndpoint{},
	}
}
