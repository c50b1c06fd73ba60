package credits

import "github.com/deckforge/DeckForge/app/repository"

// HasUsedTrial reports whether any entitlement record created from the given
// origin IP has already consumed its free trial. It is consulted only when a
// brand-new record is about to be created.
//
// This is a best-effort abuse heuristic, not a security boundary: the IP
// signal is attacker-controllable (proxies, carrier NAT, VPNs), so it merely
// raises the cost of trial farming across throwaway mailboxes. An empty IP is
// never flagged.
func HasUsedTrial(repo repository.EntitlementRepository, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	return repo.TrialUsedByIP(ip)
}
