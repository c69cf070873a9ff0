package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidAddress is wrapped by validation errors on listener bind
// addresses.
var ErrInvalidAddress = errors.New("invalid listener address")

var validate = validator.New()

// Validate checks cfg against its struct tags. Errors on a bind address
// wrap ErrInvalidAddress so callers can tell them apart.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	var badAddr []string
	for _, fe := range verrs {
		if fe.Field() == "BindAddr" {
			badAddr = append(badAddr, fmt.Sprintf("%s=%q", fe.Namespace(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	if len(badAddr) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, strings.Join(badAddr, ", "))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// bindAddrTag is the rule applied to every listener bind address.
const bindAddrTag = "required,hostname_port|tcp_addr"

// ValidateBindAddr checks the syntax of a single bind address.
func ValidateBindAddr(name, addr string) error {
	if err := validate.Var(addr, bindAddrTag); err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidAddress, name, addr)
	}
	return nil
}
