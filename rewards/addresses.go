package rewards

import (
	"log/slog"

	"github.com/ducx-network/peer-rewards/chain"
	"github.com/ducx-network/peer-rewards/storage"
)

// BackfillAddresses derives and persists the payout address for peers that
// do not have one yet. Addresses are lazily backfilled because peers are
// created from bare enode sightings.
func BackfillAddresses(store *storage.Storage, log *slog.Logger) error {
	peers, err := store.PeerRepo.FindWithoutAddress()
	if err != nil {
		return err
	}

	for _, peer := range peers {
		address, err := chain.PubkeyToAddress(peer.Enode)
		if err != nil {
			log.Warn("cannot derive address for peer", "enode", peer.Enode, "err", err)
			continue
		}
		if err := store.PeerRepo.SetAddress(peer.Enode, address.Hex()); err != nil {
			log.Warn("address backfill failed", "enode", peer.Enode, "err", err)
			continue
		}
		log.Info("set address for peer", "enode", peer.Enode, "address", address.Hex())
	}
	return nil
}
