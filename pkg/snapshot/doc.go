// Package snapshot persists dehydrated registry state.
//
// A snapshot is a versioned JSON envelope holding each store's dehydrated
// state. Envelopes are written to a Store keyed by name; memory, file and S3
// backends are provided.
//
//	store := snapshot.NewFileStore(".fluxreg/snapshots")
//	defer store.Close()
//
//	if err := snapshot.Save(ctx, store, "nightly", reg, 24*time.Hour); err != nil {
//	    return err
//	}
//	found, err := snapshot.Restore(ctx, store, "nightly", reg)
package snapshot
