package model

type MonitoringServiceForm struct {
	Name      string  `json:"name,omitempty" binding:"required"`
	ZoneID    *string `json:"zone_id,omitempty"`
	Backend   string  `json:"backend,omitempty" binding:"required"`
	Enabled   bool    `json:"enabled,omitempty"`
	Host      string  `json:"host,omitempty"`
	Protocol  string  `json:"protocol,omitempty"`
	Port      int     `json:"port,omitempty"`
	Path      string  `json:"path,omitempty"`
	Timeout   int     `json:"timeout,omitempty"`
	Interval  int     `json:"interval,omitempty"`
	Username  string  `json:"username,omitempty"`
	Password  string  `json:"password,omitempty"`
	VerifySSL *bool   `json:"verify_ssl,omitempty" copier:"-"`
}

// PollResponse reports the result of a poll triggered through the API.
type PollResponse struct {
	OK       bool     `json:"ok"`
	Kind     string   `json:"kind,omitempty"`
	Error    string   `json:"error,omitempty"`
	Resolved []string `json:"resolved,omitempty"`
	Updated  []string `json:"updated,omitempty"`
	Inserted []string `json:"inserted,omitempty"`
	Skipped  int      `json:"skipped,omitempty"`
}
