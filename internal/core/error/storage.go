package errx

import (
	"errors"
	"net/http"

	"cloud.google.com/go/storage"
)

// WrapStorage maps GCS errors to AppError; missing objects become 404.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return New(err, http.StatusNotFound, StorageNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, StorageErrorMessage)
}
