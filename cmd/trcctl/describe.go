package main

import (
	"context"
	"errors"

	"trcinventory/internal/auth"
	"trcinventory/internal/client"
	"trcinventory/internal/data"
	"trcinventory/internal/inventory"
	"trcinventory/internal/view"
)

// describe turns an error into the short line shown to staff.
func describe(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, auth.ErrThrottled):
		return "Too many failed attempts, please wait and try again."
	case errors.Is(err, inventory.ErrSnapshotExists):
		return "Today's inventory has already been opened."
	case errors.Is(err, view.ErrNoSnapshotSelected):
		return "Select an inventory day first."
	case errors.Is(err, view.ErrNoCapitalSelected):
		return "Select a capital first."
	case errors.Is(err, client.ErrInvalidRequest):
		return "Check the values entered: " + err.Error()
	case errors.Is(err, data.ErrNotFound):
		return "That record no longer exists."
	case errors.Is(err, client.ErrUnauthenticated):
		return "Please log in."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to answer."
	}
	return "Something went wrong: " + err.Error()
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrThrottled)
}
