package cerr

import (
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// F is a shorthand for attaching several fields at once.
type F map[string]interface{}

type Context struct {
	fields []field
	err    error
}

type field struct {
	key   string
	value interface{}
}

func Field(key string, value interface{}) Context {
	return Context{}.Field(key, value)
}

func Fields(fields F) Context {
	return Context{}.Fields(fields)
}

func Wrap(err error) Context {
	return Context{}.Wrap(err)
}

// Error creates a new error without a cause.
func Error(msg string) error {
	return Context{}.Error(msg)
}

func (c Context) Field(key string, value interface{}) Context {
	newCtx := c
	newCtx.fields = append(newCtx.fields, field{key: key, value: value})
	return newCtx
}

func (c Context) Fields(fields F) Context {
	newCtx := c
	for key, value := range fields {
		newCtx.fields = append(newCtx.fields, field{key: key, value: value})
	}
	return newCtx
}

func (c Context) Wrap(err error) Context {
	newCtx := c
	newCtx.err = err
	return newCtx
}

// Error terminates the chain, producing an error that carries the
// accumulated fields as safe details on top of the wrapped cause.
func (c Context) Error(msg string) error {
	var err error
	if c.err != nil {
		err = errors.Wrap(c.err, msg)
	} else {
		err = errors.New(msg)
	}

	for _, f := range c.fields {
		err = errors.WithDetailf(err, "%s: %+v", f.key, f.value)
	}

	return err
}

// Log reports an error at its final destination, including all
// accumulated details.
func Log(err error) {
	logger := log.WithError(err)
	if details := errors.GetAllDetails(err); len(details) > 0 {
		logger = logger.WithField("details", strings.Join(details, "\n"))
	}
	logger.Error("Error occurred")
}
