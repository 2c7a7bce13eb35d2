package domain

// EngineDef describes one configured external computation engine: which
// protocol it speaks, what process class it is, and where its executable
// lives. Definitions come from the engine definition file and are immutable
// once loaded.
type EngineDef struct {
	Name     string            `mapstructure:"name"`     // logical engine name primitives refer to
	Protocol string            `mapstructure:"protocol"` // protocol session name, e.g. "adam" or "mcp"
	Class    string            `mapstructure:"class"`    // process class, e.g. "monolith" or "task"
	Path     string            `mapstructure:"path"`     // executable path, environment-expanded
	Args     []string          `mapstructure:"args"`     // extra command-line arguments
	Env      map[string]string `mapstructure:"env"`      // extra environment for the launched process
	Extra    map[string]any    `mapstructure:",remain"`  // protocol-specific settings, decoded by the session
}
