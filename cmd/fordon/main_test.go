package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	dbErr := &ServerError{Op: "NewServer", Err: errors.New("database is locked"), ExitCode: ExitDatabaseError}

	assert.Equal(t, ExitDatabaseError, exitCode(dbErr))
	assert.Equal(t, ExitDatabaseError, exitCode(fmt.Errorf("startup: %w", dbErr)))
	assert.Equal(t, ExitConfigError, exitCode(errors.New("plain error")))
}
