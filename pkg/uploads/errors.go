package uploads

import "errors"

var (
	ErrNilAPI           = errors.New("uploads: participant API is required")
	ErrEmptyArchive     = errors.New("uploads: archive is empty")
	ErrEmptyName        = errors.New("uploads: archive name is required")
	ErrDeliveryRejected = errors.New("uploads: storage rejected the archive")
	ErrInvalidGrant     = errors.New("uploads: upload grant is missing a destination URL")
	ErrInvalidS3Config  = errors.New("uploads: bucket and region are required")
)
