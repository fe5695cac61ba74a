// This is a http type of reporter.
// It reads the relay's last invocation, the ledger's view
// and the relayed-action journal, and publishes them on http routes.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/btcaction"
	"github.com/TEENet-io/btcrelay/relay"
)

const (
	ROUTE_HELLO          = "/hello"
	ROUTE_STATUS         = "/status"
	ROUTE_RELAYED_HEADER = "/relayed/header"
	ROUTE_RELAYED_TX     = "/relayed/tx"
	ROUTE_METRICS        = "/metrics"
)

// StatusSource is the relay worker as seen by the reporter.
// *relay.Relay implements it.
type StatusSource interface {
	LastReport() *relay.Report
	Checkpoint() (uint32, bool, error)
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	worker   StatusSource
	ledger   agreement.BtcLedger
	headerdb btcaction.HeaderStorage
	txdb     btcaction.RelayedTxStorage
}

func NewHttpReporter(
	serverIP string,
	serverPort string,
	worker StatusSource,
	ledger agreement.BtcLedger,
	headerdb btcaction.HeaderStorage,
	txdb btcaction.RelayedTxStorage,
) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		worker:     worker,
		ledger:     ledger,
		headerdb:   headerdb,
		txdb:       txdb,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_STATUS, h.Status)
	router.GET(ROUTE_RELAYED_HEADER, h.RelayedHeader)
	router.GET(ROUTE_RELAYED_TX, h.RelayedTx)
	router.GET(ROUTE_METRICS, gin.WrapH(promhttp.Handler()))

	return router
}

// Run serves until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.WithField("addr", srv.Addr).Info("reporter listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

type HeaderIndexJSON struct {
	Height uint32 `json:"height"`
	Hash   string `json:"hash"`
}

type ReportJSON struct {
	HostBlock     uint64 `json:"host_block"`
	Broadcast     string `json:"broadcast"`
	BroadcastTxID string `json:"broadcast_txid,omitempty"`
	Pass          string `json:"pass"`
	Header        string `json:"header"`
	Started       int64  `json:"started"`
	DurationMs    int64  `json:"duration_ms"`
}

type StatusResponse struct {
	Checkpoint      *uint32          `json:"checkpoint"`
	LedgerBest      *HeaderIndexJSON `json:"ledger_best"`
	LedgerConfirmed *HeaderIndexJSON `json:"ledger_confirmed"`
	JournalHeader   *HeaderIndexJSON `json:"journal_header"`
	RelayedTxCount  int              `json:"relayed_tx_count"`
	LastReport      *ReportJSON      `json:"last_report"`
}

func reportJSON(r *relay.Report) *ReportJSON {
	if r == nil {
		return nil
	}
	return &ReportJSON{
		HostBlock:     r.HostBlock,
		Broadcast:     r.Broadcast.String(),
		BroadcastTxID: r.BroadcastTxID,
		Pass:          r.Pass.String(),
		Header:        r.Header.String(),
		Started:       r.Started.Unix(),
		DurationMs:    r.Duration.Milliseconds(),
	}
}

func (h *HttpReporter) Status(c *gin.Context) {
	resp := StatusResponse{LastReport: reportJSON(h.worker.LastReport())}

	checkpoint, found, err := h.worker.Checkpoint()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if found {
		resp.Checkpoint = &checkpoint
	}

	best, err := h.ledger.BestIndex()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp.LedgerBest = &HeaderIndexJSON{Height: best.Height, Hash: best.Hash.String()}

	confirmed, err := h.ledger.ConfirmedIndex()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if confirmed != nil {
		resp.LedgerConfirmed = &HeaderIndexJSON{Height: confirmed.Height, Hash: confirmed.Hash.String()}
	}

	latest, err := h.headerdb.LatestHeader()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if latest != nil {
		resp.JournalHeader = &HeaderIndexJSON{Height: uint32(latest.BlockNumber), Hash: latest.BlockHash}
	}

	if resp.RelayedTxCount, err = h.txdb.CountRelayedTx(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Fetch relayed headers by height or hash from the journal.
func (h *HttpReporter) RelayedHeader(c *gin.Context) {
	heightStr := c.Query("height")
	hash := c.Query("hash")

	if heightStr == "" && hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either height or hash must be provided"})
		return
	}

	var (
		headers []btcaction.HeaderAction
		err     error
	)
	if heightStr != "" {
		height, convErr := strconv.Atoi(heightStr)
		if convErr != nil || height < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a non-negative integer"})
			return
		}
		headers, err = h.headerdb.GetHeaderByHeight(height)
	} else {
		headers, err = h.headerdb.GetHeaderByHash(hash)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(headers) > 0 {
		c.JSON(http.StatusOK, gin.H{"data": headers})
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "No relayed header found"})
	}
}

// Fetch relayed transactions by tx hash or block hash from the journal.
func (h *HttpReporter) RelayedTx(c *gin.Context) {
	hash := c.Query("hash")
	block := c.Query("block")

	if hash == "" && block == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either hash or block must be provided"})
		return
	}

	var (
		txs []btcaction.RelayedTxAction
		err error
	)
	if hash != "" {
		txs, err = h.txdb.GetRelayedTxByTxHash(hash)
	} else {
		txs, err = h.txdb.GetRelayedTxByBlockHash(block)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(txs) > 0 {
		c.JSON(http.StatusOK, gin.H{"data": txs})
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "No relayed transaction found"})
	}
}
