// Package sealcheck provides the library API for verifying canonical hashes
// of forensic telemetry records.
//
// A record declares a hash of its own content under a hash field
// ("canonicalHash" by default). The hash is the lowercase hex SHA-256 of the
// record's canonical JSON form with the hash field removed. Verification
// recomputes that digest and compares it with the declared value:
//
//   - PASS: the digests are equal.
//   - FAIL: the digests differ; the record was altered after sealing.
//   - an error: the record could not be checked at all (malformed input,
//     missing hash field, cyclic value). An error is never a FAIL.
//
// # Concurrency Safety
//
// A Client holds no mutable state. Every method may be called from any
// number of goroutines. Start returns immediately; its handle reports
// PENDING until the digest is computed and then one terminal status that
// never changes.
//
// # Usage
//
//	client, err := sealcheck.New(sealcheck.Options{})
//	res, err := client.VerifyJSON(ctx, line)
//	if err != nil {
//	    // tooling fault, show as ERROR
//	}
//	if res.Status == sealcheck.StatusFail {
//	    // tampered
//	}
package sealcheck
