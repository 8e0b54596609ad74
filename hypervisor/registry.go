package hypervisor

// Handler executes one command's body given the request's argument tokens
// (excluding module and command name) and returns the Reply to send back.
type Handler func(args []string) Reply

// Command is one module's command table entry: the inclusive [min,max]
// argument-count bounds (spec.md §4.8's "validate argc within [min,max]")
// and the handler to invoke once that check passes.
type Command struct {
	MinParams int
	MaxParams int
	Handler   Handler
}

// Module is a named command table, populated once at startup and read
// concurrently thereafter — never mutated at runtime, per spec.md §4.6's
// module/command registry description.
type Module struct {
	Name     string
	Commands map[string]Command
}

// ModuleRegistry is the process-wide map from module name to its command
// table. Unlike the bridge and IOL registries, this is read-only after
// construction, so it needs no mutex of its own.
type ModuleRegistry struct {
	modules map[string]*Module
	order   []string
}

// NewModuleRegistry returns an empty module registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]*Module)}
}

// Register adds a module's command table. Intended to be called only
// during startup wiring, before the control server starts accepting
// connections.
func (r *ModuleRegistry) Register(m *Module) {
	if _, exists := r.modules[m.Name]; !exists {
		r.order = append(r.order, m.Name)
	}
	r.modules[m.Name] = m
}

// Module looks up a registered module by name.
func (r *ModuleRegistry) Module(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// ModuleNames returns every registered module name in registration order,
// backing the hypervisor module's `module_list` command.
func (r *ModuleRegistry) ModuleNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// CommandNames returns every command name registered under module in
// alphabetical-independent (map iteration) order, backing `cmd_list`.
func (r *ModuleRegistry) CommandNames(module string) ([]string, bool) {
	m, ok := r.modules[module]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(m.Commands))
	for n := range m.Commands {
		names = append(names, n)
	}
	return names, true
}

// Dispatch locates module and command, validates argc against
// [MinParams,MaxParams], and invokes the handler. Unknown module/command
// and bad argc map to the corresponding 200-series status per spec.md §6.
func (r *ModuleRegistry) Dispatch(module, command string, args []string) Reply {
	m, ok := r.modules[module]
	if !ok {
		return Err(StatusUnknownModule, "unknown module: "+module)
	}
	cmd, ok := m.Commands[command]
	if !ok {
		return Err(StatusUnknownCommand, "unknown command: "+module+" "+command)
	}
	if len(args) < cmd.MinParams || len(args) > cmd.MaxParams {
		return Err(StatusBadParamCount, "bad parameter count for "+module+" "+command)
	}
	return cmd.Handler(args)
}
