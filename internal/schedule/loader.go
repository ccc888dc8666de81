package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/npratt/growth/internal/timer"
	"gopkg.in/yaml.v3"
)

type yamlInterval struct {
	Name     string `yaml:"name"`
	Duration string `yaml:"duration"`
}

type yamlTimer struct {
	Mode           string         `yaml:"mode,omitempty"`
	Duration       string         `yaml:"duration,omitempty"`
	Intervals      []yamlInterval `yaml:"intervals,omitempty"`
	MaxRecommended string         `yaml:"max_recommended,omitempty"`
}

type yamlMethod struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Duration string     `yaml:"duration,omitempty"`
	Timer    *yamlTimer `yaml:"timer,omitempty"`
}

type yamlDay struct {
	Day     int          `yaml:"day"`
	Rest    bool         `yaml:"rest,omitempty"`
	Methods []yamlMethod `yaml:"methods,omitempty"`
}

type yamlRoutine struct {
	ID   string    `yaml:"id"`
	Name string    `yaml:"name"`
	Days []yamlDay `yaml:"days"`
}

// LoadRoutine reads and validates a routine from a YAML file.
func LoadRoutine(path string) (Routine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Routine{}, fmt.Errorf("read routine file: %w", err)
	}
	return ParseRoutine(data)
}

// ParseRoutine decodes and validates a routine from YAML bytes.
func ParseRoutine(data []byte) (Routine, error) {
	var raw yamlRoutine
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Routine{}, fmt.Errorf("parse routine yaml: %w", err)
	}

	routine := Routine{ID: raw.ID, Name: raw.Name}
	for _, rd := range raw.Days {
		day := Day{Number: rd.Day, Rest: rd.Rest}
		for _, rm := range rd.Methods {
			method, err := convertMethod(rm)
			if err != nil {
				return Routine{}, fmt.Errorf("day %d: %w", rd.Day, err)
			}
			day.Methods = append(day.Methods, method)
		}
		routine.Days = append(routine.Days, day)
	}

	if err := routine.Validate(); err != nil {
		return Routine{}, fmt.Errorf("invalid routine: %w", err)
	}
	return routine, nil
}

// MarshalRoutine encodes a routine back to YAML.
func MarshalRoutine(r Routine) ([]byte, error) {
	raw := yamlRoutine{ID: r.ID, Name: r.Name}
	for _, d := range r.Days {
		rd := yamlDay{Day: d.Number, Rest: d.Rest}
		for _, m := range d.Methods {
			rm := yamlMethod{ID: m.ID, Name: m.Name, Duration: formatDuration(m.DefaultDuration)}
			if m.Timer != nil {
				rt := &yamlTimer{
					Mode:           string(m.Timer.Mode),
					Duration:       formatDuration(m.Timer.Duration),
					MaxRecommended: formatDuration(m.Timer.MaxRecommended),
				}
				for _, iv := range m.Timer.Intervals {
					rt.Intervals = append(rt.Intervals, yamlInterval{Name: iv.Name, Duration: iv.Duration.String()})
				}
				rm.Timer = rt
			}
			rd.Methods = append(rd.Methods, rm)
		}
		raw.Days = append(raw.Days, rd)
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal routine yaml: %w", err)
	}
	return data, nil
}

func convertMethod(rm yamlMethod) (Method, error) {
	method := Method{ID: rm.ID, Name: rm.Name}
	if method.Name == "" {
		method.Name = rm.ID
	}

	var err error
	if method.DefaultDuration, err = parseDuration(rm.Duration); err != nil {
		return Method{}, fmt.Errorf("method %q duration: %w", rm.ID, err)
	}

	if rm.Timer == nil {
		return method, nil
	}

	tc := &TimerConfig{Mode: timer.Mode(rm.Timer.Mode)}
	if tc.Mode != "" && !tc.Mode.Valid() {
		return Method{}, fmt.Errorf("method %q: unknown timer mode %q", rm.ID, rm.Timer.Mode)
	}
	if tc.Duration, err = parseDuration(rm.Timer.Duration); err != nil {
		return Method{}, fmt.Errorf("method %q timer duration: %w", rm.ID, err)
	}
	if tc.MaxRecommended, err = parseDuration(rm.Timer.MaxRecommended); err != nil {
		return Method{}, fmt.Errorf("method %q max_recommended: %w", rm.ID, err)
	}
	for _, iv := range rm.Timer.Intervals {
		d, err := parseDuration(iv.Duration)
		if err != nil {
			return Method{}, fmt.Errorf("method %q interval %q: %w", rm.ID, iv.Name, err)
		}
		tc.Intervals = append(tc.Intervals, Interval{Name: iv.Name, Duration: d})
	}
	method.Timer = tc
	return method, nil
}

// parseDuration accepts Go duration strings and bare integers (seconds).
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var seconds int
	if _, err := fmt.Sscanf(s, "%d", &seconds); err == nil && fmt.Sprint(seconds) == s {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
