package host

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type MintResponse struct {
	Status string `json:"status"`
	Data   struct {
		To          string `json:"to"`
		Amount      uint64 `json:"amount"`
		TotalSupply uint64 `json:"total_supply"`
	} `json:"data"`
}

type TransferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type TransferResponse struct {
	Status string `json:"status"`
	Data   struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
	} `json:"data"`
}

type BatchTransferLeg struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BatchTransferRequest struct {
	Caller string             `json:"caller"`
	Legs   []BatchTransferLeg `json:"legs"`
}

type BatchTransferResponse struct {
	Status string `json:"status"`
	Data   struct {
		From        string `json:"from"`
		Legs        int    `json:"legs"`
		TotalAmount uint64 `json:"total_amount"`
	} `json:"data"`
}

type BalanceRequest struct {
	Account string `json:"account"`
}

type BalanceResponse struct {
	Status string `json:"status"`
	Data   struct {
		Account string `json:"account"`
		Balance uint64 `json:"balance"`
	} `json:"data"`
}

type MyBalanceRequest struct {
	Caller string `json:"caller"`
}

type TotalSupplyResponse struct {
	Status string `json:"status"`
	Data   struct {
		TotalSupply uint64 `json:"total_supply"`
	} `json:"data"`
}

type OwnerResponse struct {
	Status string `json:"status"`
	Data   struct {
		Owner string `json:"owner"`
	} `json:"data"`
}

type HoldersRequest struct {
	Limit  int
	Offset int
}

type HolderDTO struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type HoldersResponse struct {
	Status string      `json:"status"`
	Data   []HolderDTO `json:"data"`
}
