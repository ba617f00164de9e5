package specmatic

import (
	"github.com/EmmanuelMendoza/specmatic/pattern"
	"github.com/EmmanuelMendoza/specmatic/result"
	"github.com/EmmanuelMendoza/specmatic/value"
)

// KafkaMessage is a message on a topic. Key may be nil.
type KafkaMessage struct {
	Topic string
	Key   value.Value
	Value value.Value
}

// KafkaMessagePattern describes the messages a scenario publishes. A nil Key
// accepts any key.
type KafkaMessagePattern struct {
	Topic string
	Key   pattern.Pattern
	Value pattern.Pattern
}

func (p KafkaMessagePattern) Matches(msg KafkaMessage, r *pattern.Resolver) result.Result {
	if p.Topic != msg.Topic {
		return result.FailFluffy("Expected topic %s, actual was %s", p.Topic, msg.Topic).WithBreadcrumb("TOPIC")
	}
	if p.Key != nil {
		if res := matchParsed(p.Key, bodyOrEmpty(msg.Key), r); !res.IsSuccess() {
			return res.WithBreadcrumb("KEY")
		}
	}
	return result.Breadcrumb(matchParsed(p.valuePattern(), bodyOrEmpty(msg.Value), r), "VALUE")
}

func (p KafkaMessagePattern) valuePattern() pattern.Pattern {
	if p.Value == nil {
		return pattern.EmptyString{}
	}
	return p.Value
}

func (p KafkaMessagePattern) Generate(r *pattern.Resolver) (KafkaMessage, error) {
	msg := KafkaMessage{Topic: p.Topic}
	if p.Key != nil {
		key, err := p.Key.Generate(r)
		if err != nil {
			return KafkaMessage{}, withBreadcrumbs(err, "KEY")
		}
		msg.Key = key
	}
	v, err := p.valuePattern().Generate(r)
	if err != nil {
		return KafkaMessage{}, withBreadcrumbs(err, "VALUE")
	}
	msg.Value = v
	return msg, nil
}

// Encompasses reports whether p accepts every message other describes.
// Messages are read by consumers, so compatibility checks call it on the
// older pattern in reader view.
func (p KafkaMessagePattern) Encompasses(other KafkaMessagePattern, r, otherR *pattern.Resolver) result.Result {
	r = r.WithReaderView(true)
	if p.Topic != other.Topic {
		return result.Fail("Expected topic %s, actual was %s", p.Topic, other.Topic).WithBreadcrumb("TOPIC")
	}
	if p.Key != nil {
		otherKey := other.Key
		if otherKey == nil {
			otherKey = pattern.String{}
		}
		if res := p.Key.Encompasses(otherKey, r, otherR); !res.IsSuccess() {
			return res.WithBreadcrumb("KEY")
		}
	}
	return result.Breadcrumb(p.valuePattern().Encompasses(other.valuePattern(), r, otherR), "VALUE")
}

// KafkaMatch pairs a scenario with the outcome of comparing it.
type KafkaMatch struct {
	Scenario *Scenario
	Result   result.Result
}
