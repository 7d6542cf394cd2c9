package state

var (
	accountPrefix     = []byte("account/")
	mintPrefix        = []byte("token/mint/")
	holdingPrefix     = []byte("token/holding/")
	marketplacePrefix = []byte("market/registry/")
	listingPrefix     = []byte("market/listing/")

	genesisKey = []byte("chain/genesis")
)
