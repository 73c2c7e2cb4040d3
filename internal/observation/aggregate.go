package observation

// Aggregate folds per-version scan results into the supported protocol and
// cipher sets. A version counts as supported when it accepted at least one
// cipher. Ciphers are unioned across versions and the accepting version
// is not retained.
func Aggregate(scans []ProtocolScan) (ProtocolSet, StringSet) {
	protocols := make(ProtocolSet)
	ciphers := make(StringSet)
	for _, scan := range scans {
		if len(scan.AcceptedCiphers) == 0 {
			continue
		}
		protocols.Add(scan.Protocol)
		for _, c := range scan.AcceptedCiphers {
			ciphers.Add(c)
		}
	}
	return protocols, ciphers
}
