package multipart

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3transfer/s3types"
)

var transitions = map[s3types.SessionState][]s3types.SessionState{
	s3types.SessionInit:          {s3types.SessionPartsInFlight, s3types.SessionAborting},
	s3types.SessionPartsInFlight: {s3types.SessionCompleting, s3types.SessionAborting},
	s3types.SessionCompleting:    {s3types.SessionCompleted, s3types.SessionAborting},
	s3types.SessionAborting:      {s3types.SessionAborted},
}

// session wraps the shared session record with checked state changes.
type session struct {
	s3types.MultipartSession

	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func newSession(bucket, key string, log logrus.FieldLogger, m *metrics.Metrics) *session {
	return &session{
		MultipartSession: s3types.MultipartSession{
			Bucket: bucket,
			Key:    key,
			State:  s3types.SessionInit,
		},
		log:     log,
		metrics: m,
	}
}

// advance moves the session to the next state. Terminal states are recorded
// once; any move out of a terminal state is an error.
func (s *session) advance(to s3types.SessionState) error {
	for _, next := range transitions[s.State] {
		if next == to {
			s.log.WithFields(logrus.Fields{
				"from":  s.State.String(),
				"state": to.String(),
			}).Debug("session state changed")

			s.State = to
			if to.Terminal() {
				s.metrics.ObserveSession(to)
			}
			return nil
		}
	}

	return errors.NewObjectError("session", s.Bucket, s.Key,
		fmt.Errorf("illegal transition %s -> %s", s.State, to)).WithCode(errors.CodeInternal)
}
