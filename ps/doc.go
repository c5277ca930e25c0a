// Package ps provides the persistence layer for DuckServe bundles.
//
// A bundle is a named directory under a bundle root. Artifacts are written
// atomically, so a reader never observes a partially written file.
//
//	bundle, err := ps.OpenBundle(".mosaic/bundle", "flights")
//	err = bundle.Ensure()
//	err = bundle.WriteFile(string(key), payload)
//	err = bundle.WriteManifest(manifest)
//
// # History
//
// Bundle roots can be versioned with Git. Every recorded bundle becomes a
// commit, so earlier snapshots stay recoverable:
//
//	history, err := ps.OpenHistory(".mosaic/bundle")
//	txn, err := history.Record(bundle, manifest, identity)
//
// # Remote Storage
//
// Bundles can be mirrored to S3 or an S3-compatible service:
//
//	remote, err := ps.NewRemote(ctx, ps.RemoteConfig{URL: "s3://bucket/bundles"})
//	err = remote.Push(ctx, bundle, manifest)
//	manifest, err = remote.Pull(ctx, bundle)
package ps
