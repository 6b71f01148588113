// Package service holds the authentication and approval business logic.
package service

import (
	"time"

	"github.com/layer-3/cosign/internal/logger"
	"github.com/layer-3/cosign/internal/retry"
	"github.com/sirupsen/logrus"
)

// Options carries the collaborators shared by every service.
type Options struct {
	Log    logrus.FieldLogger
	Policy retry.Policy
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = logger.Discard()
	}
	if o.Policy == (retry.Policy{}) {
		o.Policy = retry.DefaultPolicy()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
