// Package uploads delivers participant data archives to the study server's
// storage.
//
// The flow mirrors the server's upload protocol: request an upload grant,
// deliver the bytes, then confirm completion so server-side validation can
// start. Delivery goes through a Sink; the default sink PUTs to the grant's
// pre-signed URL, and S3Sink writes straight to a bucket for deployments
// that bypass pre-signing.
//
// Usage:
//
//	mgr, err := uploads.New(manager.API())
//	if err != nil {
//		return err
//	}
//	uploadID, err := mgr.Upload(ctx, "archive.zip", data)
package uploads
