package transport

import (
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATS carries scoring requests in and results out.
type NATS struct {
	nc           *nats.Conn
	resultPrefix string
	logSubjects  bool
	metrics      Metrics
	sub          *nats.Subscription
}

type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// Handler receives the raw request payload and the reply subject, which is
// empty for plain publishes.
type Handler func(data []byte, reply string)

func Connect(url, resultPrefix string, logSubjects bool, m Metrics) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("transit-scorer"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATS{nc: nc, resultPrefix: resultPrefix, logSubjects: logSubjects, metrics: m}, nil
}

// Subscribe joins the queue group on subject so that several scorer
// instances share the request stream.
func (t *NATS) Subscribe(subject, queue string, h Handler) error {
	sub, err := t.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		h(msg.Data, msg.Reply)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	t.sub = sub
	log.Printf("nats subscribed subject=%s queue=%s", subject, queue)
	return nil
}

// PublishResult publishes payload on <prefix>.<id> and, when reply is set,
// answers the requester as well.
func (t *NATS) PublishResult(id string, payload []byte, reply string) error {
	subject := fmt.Sprintf("%s.%s", t.resultPrefix, subjectToken(id))
	if t.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	err := t.nc.Publish(subject, payload)
	if err == nil && reply != "" {
		err = t.nc.Publish(reply, payload)
	}
	if t.metrics != nil {
		if err != nil {
			t.metrics.NATSPublishErrInc()
		} else {
			t.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Close stops taking requests, flushes pending publishes and closes the
// connection.
func (t *NATS) Close() {
	if t.nc == nil {
		return
	}
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
	}
	_ = t.nc.Drain()
	t.nc.Close()
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
