package config

import "fmt"

// QueueDriver selects the backend that stores job envelopes.
type QueueDriver string

const (
	Postgres QueueDriver = "postgres"
	Redis    QueueDriver = "redis"
	Memory   QueueDriver = "memory"
)

func (d QueueDriver) String() string {
	switch d {
	case Postgres, Redis, Memory:
		return string(d)
	}
	return "unknown"
}

func ParseQueueDriver(s string) (QueueDriver, error) {
	d := QueueDriver(s)
	if d.String() == "unknown" {
		return "", fmt.Errorf("unsupported queue driver %q", s)
	}
	return d, nil
}
