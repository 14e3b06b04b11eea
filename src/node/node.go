package node

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/tally/src/common"
	"github.com/mosaicnetworks/tally/src/config"
	"github.com/mosaicnetworks/tally/src/ledger"
	"github.com/mosaicnetworks/tally/src/net"
	"github.com/mosaicnetworks/tally/src/peers"
	"github.com/mosaicnetworks/tally/src/pool"
	"github.com/sirupsen/logrus"
)

//Node defines a tally node
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	self      peers.Peer
	peers     *peers.PeerSet
	bootstrap []peers.Peer

	ledger *ledger.Ledger
	pool   *pool.Pool

	trans net.Transport
	netCh <-chan net.RPC

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	loops        sync.WaitGroup

	signalTimer *ControlTimer
	informTimer *ControlTimer
	blabTimer   *ControlTimer

	// consecutive failed discovery calls per peer
	failLock sync.Mutex
	failures map[peers.Peer]int

	// StateSync bookkeeping
	syncLock sync.Mutex
	cursors  map[peers.Peer]int64
	deferred map[string]*deferredTx

	start        time.Time
	signalRounds uint64
	informRounds uint64
	blabRounds   uint64
	syncRequests uint64
	syncErrors   uint64
}

//NewNode is a factory method that returns a Node instance. The node does not
//own the PeerSet, Ledger or Pool; it only holds references to them.
func NewNode(conf *config.Config,
	peerSet *peers.PeerSet,
	bootstrap []peers.Peer,
	ledger *ledger.Ledger,
	pool *pool.Pool,
	trans net.Transport,
) *Node {

	node := Node{
		conf:        conf,
		logger:      conf.Logger().WithField("component", "node"),
		peers:       peerSet,
		bootstrap:   bootstrap,
		ledger:      ledger,
		pool:        pool,
		trans:       trans,
		netCh:       trans.Consumer(),
		shutdownCh:  make(chan struct{}),
		signalTimer: NewRandomControlTimer(),
		informTimer: NewRandomControlTimer(),
		blabTimer:   NewRandomControlTimer(),
		failures:    make(map[peers.Peer]int),
		cursors:     make(map[peers.Peer]int64),
		deferred:    make(map[string]*deferredTx),
	}

	return &node
}

//Init resolves the address of the node and seeds the registry with the
//bootstrap peers.
func (n *Node) Init() error {
	self, err := peers.ParsePeer(n.trans.AdvertiseAddr())
	if err != nil {
		return fmt.Errorf("advertise address: %v", err)
	}
	n.self = self
	n.logger = n.logger.WithField("self", self.NetAddr())

	added := n.peers.Merge(n.bootstrap, n.self)

	n.logger.WithFields(logrus.Fields{
		"bootstrap": len(n.bootstrap),
		"added":     added,
	}).Debug("Init")

	n.setState(Running)

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go n.Run()
}

//Run starts the three periodic protocols and serves RPCs until Shutdown.
func (n *Node) Run() {
	n.start = time.Now()

	go n.trans.Listen()

	n.loops.Add(3)
	go n.runProtocol("signal", n.signalTimer, n.conf.SignalInterval, n.signal)
	go n.runProtocol("inform", n.informTimer, n.conf.InformInterval, n.inform)
	go n.runProtocol("blab", n.blabTimer, n.conf.BlabInterval, n.blab)

	n.doBackgroundWork()
}

// runProtocol runs round every interval. The round runs synchronously, and the
// timer is armed again only when it returns, so rounds of the same protocol
// never overlap.
func (n *Node) runProtocol(name string, timer *ControlTimer, interval time.Duration, round func()) {
	defer n.loops.Done()

	go timer.Run(interval)

	for {
		select {
		case <-timer.tickCh:
			start := time.Now()
			round()
			n.logger.WithFields(logrus.Fields{
				"protocol": name,
				"duration": time.Since(start).Nanoseconds(),
			}).Debug("Round")
			timer.Reset(interval)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			ok := n.goFunc(func() {
				n.processRPC(rpc)
			})
			if !ok {
				n.logger.Warn("Too many concurrent RPCs")
				rpc.Respond(nil, fmt.Errorf("busy"))
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// Submit admits a transaction from a client. It checks the shape and the
// signature, and the sender's balance as of now, then stamps the transaction
// and adds it to the pool. The check is advisory: the transaction is committed
// later by the gossip round, which checks the balance again.
//
// Submitting a transaction that is already committed or pending is accepted
// and has no effect.
func (n *Node) Submit(tx *ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	if n.ledger.Contains(tx.Signature) {
		return nil
	}

	if balance := n.ledger.Balance(tx.Sender); balance < tx.Amount {
		return common.NewInsufficientFundsErr(tx.Sender, balance, tx.Amount)
	}

	admitted := tx.Copy()
	admitted.Index = 0
	admitted.Timestamp = time.Now().UnixNano()

	if n.pool.Add(admitted) {
		n.logger.WithFields(logrus.Fields{
			"sender":   admitted.Sender,
			"receiver": admitted.Receiver,
			"amount":   admitted.Amount,
		}).Debug("Submit")
	}

	return nil
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop timers and protocol loops
		close(n.shutdownCh)
		n.signalTimer.Shutdown()
		n.informTimer.Shutdown()
		n.blabTimer.Shutdown()

		//Outbound calls in progress fail or time out
		n.trans.Close()

		n.loops.Wait()
		n.waitRoutines()

		//The ledger is closed last, once nothing can commit anymore
		if err := n.ledger.Close(); err != nil {
			n.logger.WithError(err).Error("Closing ledger")
		}
	})
}

// Self returns the address of the node, as advertised to its peers.
func (n *Node) Self() peers.Peer {
	return n.self
}

// GetPeers returns a snapshot of the peer registry.
func (n *Node) GetPeers() []peers.Peer {
	return n.peers.All()
}

// Balance returns the balance of an address.
func (n *Node) Balance(address string) uint64 {
	return n.ledger.Balance(address)
}

// Transactions returns a page of the transactions of an address.
func (n *Node) Transactions(address string, limit, offset int) ([]*ledger.Transaction, error) {
	return n.ledger.Transactions(address, limit, offset)
}

// GetState returns the state of the node.
func (n *Node) GetState() State {
	return n.getState()
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	s := map[string]string{
		"last_index":       strconv.FormatInt(n.ledger.LastIndex(), 10),
		"transaction_pool": strconv.Itoa(n.pool.Len()),
		"num_peers":        strconv.Itoa(n.peers.Len()),
		"deferred":         strconv.Itoa(n.deferredLen()),
		"signal_rounds":    strconv.FormatUint(atomic.LoadUint64(&n.signalRounds), 10),
		"inform_rounds":    strconv.FormatUint(atomic.LoadUint64(&n.informRounds), 10),
		"blab_rounds":      strconv.FormatUint(atomic.LoadUint64(&n.blabRounds), 10),
		"sync_rate":        strconv.FormatFloat(n.SyncRate(), 'f', 2, 64),
		"self":             n.self.NetAddr(),
		"state":            n.getState().String(),
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	fields := logrus.Fields{}
	for k, v := range stats {
		fields[k] = v
	}

	n.logger.WithFields(fields).Debug("Stats")
}

//SyncRate returns the share of successful pull requests
func (n *Node) SyncRate() float64 {
	requests := atomic.LoadUint64(&n.syncRequests)
	errors := atomic.LoadUint64(&n.syncErrors)

	if requests == 0 {
		return 1
	}

	return 1 - float64(errors)/float64(requests)
}
