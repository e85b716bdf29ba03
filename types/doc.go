// Package types defines the shared data model of the warm-transfer service:
// structured errors with stable codes, credentials, transfer requests and
// snapshots, and session connection state. It has no dependencies on other
// warmline packages so every layer can exchange these values freely.
package types
