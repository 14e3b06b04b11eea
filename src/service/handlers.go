package service

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/crypto/keys"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/wallet"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type privateKeyRequest struct {
	PrivateKey string `json:"privateKey"`
}

type publicKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

type transferRequest struct {
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`
}

type submitResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
}

// fail writes err with the status code of its classification.
func (s *Service) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "Internal"

	if t, ok := common.TypeOf(err); ok {
		kind = t.String()
		switch t {
		case common.Validation, common.InvalidSignature:
			status = http.StatusBadRequest
		case common.InsufficientFunds:
			status = http.StatusUnprocessableEntity
		case common.PeerUnreachable:
			status = http.StatusServiceUnavailable
		}
	} else if common.IsStore(err, common.KeyNotFound) {
		status = http.StatusNotFound
		kind = "NotFound"
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("HTTP request failed")
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  kind,
	})
}

func addressParam(c *gin.Context) (string, error) {
	address := c.Query("publicKey")
	if !keys.IsAddress(address) {
		return "", common.NewValidationErr("invalid publicKey %q", address)
	}
	return address, nil
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, common.NewValidationErr("invalid %s %q", name, raw)
	}
	return v, nil
}

// Ping ...
func (s *Service) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Generate creates a new address in the address book.
func (s *Service) Generate(c *gin.Context) {
	address, err := s.book.Generate()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": address})
}

// ImportAddress adds a private key to the address book.
func (s *Service) ImportAddress(c *gin.Context) {
	var req privateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewValidationErr("malformed body: %v", err))
		return
	}

	address, err := s.book.Import(req.PrivateKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": address})
}

// RemoveAddress removes an address from the address book.
func (s *Service) RemoveAddress(c *gin.Context) {
	var req publicKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewValidationErr("malformed body: %v", err))
		return
	}

	if err := s.book.Remove(req.PublicKey); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": req.PublicKey})
}

// ListAddresses ...
func (s *Service) ListAddresses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"addresses": s.book.List()})
}

// GetBalance returns the committed balance of an address.
func (s *Service) GetBalance(c *gin.Context) {
	address, err := addressParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicKey": address,
		"balance":   s.node.Balance(address),
	})
}

// GetTransactions returns a page of the committed transactions of an address,
// in ascending sequence index order.
func (s *Service) GetTransactions(c *gin.Context) {
	address, err := addressParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	limit, err := intParam(c, "limit", defaultPageSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit == 0 {
		s.fail(c, common.NewValidationErr("limit must be positive"))
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset, err := intParam(c, "offset", 0)
	if err != nil {
		s.fail(c, err)
		return
	}

	txs, err := s.node.Transactions(address, limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	if txs == nil {
		txs = []*ledger.Transaction{}
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// PostTransaction signs a transfer from an address of the address book and
// submits it. The response means the transaction was accepted in the pool,
// not that it is committed.
func (s *Service) PostTransaction(c *gin.Context) {
	sender, err := addressParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, common.NewValidationErr("malformed body: %v", err))
		return
	}

	tx, err := wallet.Transfer(s.book, sender, req.Receiver, req.Amount, s.node.Self().NetAddr())
	if err != nil {
		s.fail(c, err)
		return
	}

	s.submit(c, tx)
}

// Submit accepts a transaction signed by the client.
func (s *Service) Submit(c *gin.Context) {
	var tx ledger.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		s.fail(c, common.NewValidationErr("malformed body: %v", err))
		return
	}

	s.submit(c, &tx)
}

func (s *Service) submit(c *gin.Context, tx *ledger.Transaction) {
	if err := s.node.Submit(tx); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, submitResponse{
		Status:    "accepted",
		Signature: tx.Signature,
	})
}

// GetPeers returns the peer registry.
func (s *Service) GetPeers(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.GetPeers())
}

// GetStats ...
func (s *Service) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.GetStats())
}
