package restapi

import "time"

// Config holds the transport settings, loadable from the environment via
// the config package.
type Config struct {
	// BaseURL is the study server root, e.g. "https://study.example.org".
	BaseURL string `env:"STUDY_API_BASE_URL,required" yaml:"base_url"`

	// ClientInfo is sent as the User-Agent so the server can apply
	// app-version filtering.
	ClientInfo string `env:"STUDY_API_CLIENT_INFO" envDefault:"studykit/1.0" yaml:"client_info"`

	// RequestTimeout bounds each HTTP request end to end.
	RequestTimeout time.Duration `env:"STUDY_API_REQUEST_TIMEOUT" envDefault:"30s" yaml:"request_timeout"`
}
