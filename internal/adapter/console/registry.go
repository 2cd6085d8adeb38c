package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	CodeFailure = 0
	CodeSuccess = 1
)

var ErrDuplicateCommand = errors.New("console command already registered")

// Result is what a command hands back to the invoking entity.
type Result struct {
	Code     int    `json:"code"`
	Feedback string `json:"feedback"`
}

func Success(format string, args ...any) Result {
	return Result{Code: CodeSuccess, Feedback: fmt.Sprintf(format, args...)}
}

func Failure(format string, args ...any) Result {
	return Result{Code: CodeFailure, Feedback: fmt.Sprintf(format, args...)}
}

type Command struct {
	Name  string
	Usage string
	Help  string
	Run   func(ctx context.Context, args []string) Result
}

// Registry maps console command names to handlers. Names are matched
// case-insensitively and each name may be registered once.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}}
}

func (r *Registry) Register(cmd Command) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "" || cmd.Run == nil {
		return errors.New("console command needs a name and a handler")
	}
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	cmd.Name = name
	if cmd.Usage == "" {
		cmd.Usage = name
	}
	r.commands[name] = cmd
	return nil
}

// Commands lists registered commands sorted by name.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs one console line. A leading slash is accepted.
func (r *Registry) Execute(ctx context.Context, line string) Result {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return Failure("Empty command")
	}
	name := strings.ToLower(fields[0])
	cmd, ok := r.commands[name]
	if !ok {
		if s, ok := r.Suggest(name); ok {
			return Failure("Unknown command %q. Did you mean %q?", name, s)
		}
		return Failure("Unknown command %q. Try help", name)
	}
	return cmd.Run(ctx, fields[1:])
}

// Suggest returns the closest registered name within a small edit distance.
func (r *Registry) Suggest(name string) (string, bool) {
	best, bestDist := "", -1
	for _, c := range r.Commands() {
		dist := levenshtein.ComputeDistance(name, c.Name)
		if dist > suggestLimit(len(c.Name)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c.Name, dist
		}
	}
	return best, bestDist >= 0
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
