package config

// Config is the process configuration. The file may be JSON or YAML; both are
// decoded strictly (unknown fields are rejected).
//
// Only logging and report are applied live on reload. Display, loop and show
// are read once at startup.
type Config struct {
	Display DisplayConfig `json:"display"`
	Loop    LoopConfig    `json:"loop"`
	Logging LoggingConfig `json:"logging"`
	Report  ReportConfig  `json:"report"`
	Systemd SystemdConfig `json:"systemd"`

	// ShutdownTimeout bounds graceful stop (Go duration string). Default "5s".
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	Show ShowConfig `json:"show"`
}

// DisplayConfig selects and sizes the display surface.
//
// Backend is one of:
//   - "auto": terminal when stdout is a TTY, memory otherwise
//   - "terminal": ANSI terminal on stdout
//   - "memory": headless in-memory grid
type DisplayConfig struct {
	Backend     string `json:"backend,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	RefreshRate int    `json:"refresh_rate,omitempty"`
	AltScreen   bool   `json:"alt_screen,omitempty"`
}

// LoopConfig tunes the render loop.
//
// JoinTasks is a pointer so an omitted value keeps the default (true).
type LoopConfig struct {
	JoinTasks     *bool   `json:"join_tasks,omitempty"`
	MaxFrames     uint64  `json:"max_frames,omitempty"`
	RenderLogRate float64 `json:"render_log_rate,omitempty"`
	HistorySize   int     `json:"history_size,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    FileLoggingConfig `json:"file"`
}

type FileLoggingConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ReportConfig controls the periodic stats log line.
// Schedule is a standard cron expression or descriptor ("@every 30s").
type ReportConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
}

// SystemdConfig enables sd_notify integration. Both are no-ops outside systemd.
type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

// ShowConfig declares a scene without Go code.
type ShowConfig struct {
	Panels []PanelConfig `json:"panels"`
}

// PanelConfig is one panel. Delay and Duration are seconds; Frames, when set,
// overrides Duration.
type PanelConfig struct {
	Delay    float64        `json:"delay,omitempty"`
	Duration float64        `json:"duration,omitempty"`
	Frames   *uint64        `json:"frames,omitempty"`
	Objects  []ObjectConfig `json:"objects"`
}

// ObjectConfig is a text object, or a reference to one declared earlier.
//
// An object with an ID can be placed in later panels with {"ref": "<id>"};
// the same object is then drawn by each panel and its tasks run once.
type ObjectConfig struct {
	ID    string       `json:"id,omitempty"`
	Ref   string       `json:"ref,omitempty"`
	Text  string       `json:"text,omitempty"`
	Label string       `json:"label,omitempty"`
	X     int          `json:"x,omitempty"`
	Y     int          `json:"y,omitempty"`
	Color string       `json:"color,omitempty"`
	Tasks []TaskConfig `json:"tasks,omitempty"`
}

// TaskConfig is a recurring task. Every is the period in seconds. Times
// bounds the fire count; omitted means forever.
type TaskConfig struct {
	Behavior string         `json:"behavior"`
	Every    float64        `json:"every"`
	Times    *int           `json:"times,omitempty"`
	Name     string         `json:"name,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}
