package types

// Version is the canonical project version.
// The CLI and the wire protocol docs share this version, and journal
// manifests record it as codec_version; the journal frame format carries
// its own journal.FormatVersion.
const Version = "0.2.0"
