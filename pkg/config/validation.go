package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("listen_addr", isListenAddr)
	})
	return validate
}

// isListenAddr accepts "host:port" where host may be empty, a name, or an
// IP literal (IPv6 in brackets).
func isListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	return err == nil && port != ""
}

// Validate checks the configuration against its struct tags and the
// cross-field rules the tags cannot express.
//
// Errors name the offending field by its config key path, e.g.
// "server.protocol.buffer_size".
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value: %v)", fieldPath(fe), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	p := cfg.Server.Protocol
	if p.BufferSize > 0 && p.BufferSize < 16 {
		return fmt.Errorf("server.protocol.buffer_size: must be at least 16B, got %s", p.BufferSize)
	}
	if p.MaxHeaderBytes > 0 && p.MaxHeaderBytes < 256 {
		return fmt.Errorf("server.protocol.max_header_bytes: must be at least 256B, got %s", p.MaxHeaderBytes)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Address == cfg.Server.Address {
		return fmt.Errorf("metrics.address: must differ from server.address (%s)", cfg.Server.Address)
	}
	return nil
}

// fieldPath turns "Config.Server.Protocol.BufferSize" into a lowercase
// dotted path without the root type.
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}
