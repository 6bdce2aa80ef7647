package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/iotaaxel/limit-order-book/internal/common"
	"github.com/iotaaxel/limit-order-book/internal/config"
	"github.com/iotaaxel/limit-order-book/internal/engine"
	"github.com/iotaaxel/limit-order-book/internal/utils"
)

var ErrClientDoesNotExist = errors.New("client does not exist")

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// Server drives the order book over a TCP session protocol. It is the
// external caller the engine expects: it generates order ids, serializes all
// book access behind one lock, triggers matching after accepted inserts and
// runs the expiry scan on a fixed tick.
type Server struct {
	address string
	port    int
	cancel  context.CancelFunc

	book   *engine.OrderBook
	bookMu sync.Mutex

	matchOnInsert  bool
	expiryInterval time.Duration
	clock          utils.Clock

	pool *utils.WorkerPool

	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex

	// Maps resting order ids to the session that placed them, so fills and
	// expiries can be routed back.
	owners     map[string]string
	ownersLock sync.Mutex
}

func New(cfg config.Config, book *engine.OrderBook) *Server {
	return &Server{
		address:        cfg.ListenAddress,
		port:           cfg.ListenPort,
		book:           book,
		matchOnInsert:  cfg.MatchOnInsert,
		expiryInterval: cfg.ExpiryInterval.Std(),
		clock:          utils.RealClock{},
		pool:           utils.NewWorkerPool(cfg.Workers),
		clientSessions: make(map[string]ClientSession),
		owners:         make(map[string]string),
	}
}

func (s *Server) SetClock(clock utils.Clock) { s.clock = clock }

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}

	// Unblock Accept once the context is cancelled.
	t.Go(func() error {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		return nil
	})

	// Start the connection workers and the expiry scan.
	s.pool.Run(t, s.handleConnection)
	t.Go(func() error {
		return s.expiryLoop(t)
	})

	log.Info().
		Str("address", s.address).
		Int("port", s.port).
		Msg("server running")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				// Shutting down: release blocked session readers, then wait
				// for the workers to drain.
				s.closeAllSessions()
				if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("shutdown error")
				}
				return
			default:
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")
		s.addClientSession(conn)
		s.pool.AddTask(conn)
	}
}

// handleConnection owns one client connection: it reads messages until the
// peer goes away or the server dies.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return errors.New("task is not a connection")
	}
	addr := conn.RemoteAddr().String()
	defer s.dropClientSession(addr)

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		payload, err := ReadFrame(conn)
		if err != nil {
			log.Info().Str("address", addr).Msg("client disconnected")
			return nil
		}

		msg, err := ParseMessage(payload)
		if err != nil {
			log.Warn().Err(err).Str("address", addr).Msg("bad message")
			s.send(addr, errorReport(err, s.clock.Now()))
			continue
		}
		if err := s.dispatch(t, addr, msg); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(t *tomb.Tomb, addr string, msg Message) error {
	switch m := msg.(type) {
	case *NewOrderMessage:
		return s.handleNewOrder(t, addr, m)
	case *CancelOrderMessage:
		s.handleCancelOrder(addr, m)
	case BaseMessage:
		// Heartbeats keep the session alive, nothing to do.
	}
	return nil
}

func (s *Server) handleNewOrder(t *tomb.Tomb, addr string, m *NewOrderMessage) error {
	id := uuid.New().String()
	order := m.Order(id)

	s.bookMu.Lock()
	err := s.book.AddOrder(order)
	if err != nil {
		s.bookMu.Unlock()
		log.Warn().Err(err).Str("address", addr).Msg("order rejected")
		s.send(addr, errorReport(err, s.clock.Now()))
		return nil
	}
	stamped, _ := s.book.Order(id)
	// Register the owner before releasing the lock: the expiry ticker may
	// evict the order the moment the lock drops, and its report needs a
	// routable owner.
	s.setOwner(id, addr)

	var trades []common.Trade
	if s.matchOnInsert {
		trades, err = s.book.Match()
	}
	s.bookMu.Unlock()

	s.send(addr, ackReport(stamped))
	log.Info().
		Str("order", id).
		Str("side", order.Side.String()).
		Int64("price", order.Price).
		Uint64("quantity", order.Quantity).
		Str("tif", order.TimeInForce.String()).
		Msg("order accepted")

	s.publishTrades(trades)

	if err != nil {
		// A corrupt book is a logic bug. Surface it and stop serving.
		log.Error().Err(err).Msg("matching failed")
		t.Kill(err)
		return err
	}
	return nil
}

func (s *Server) handleCancelOrder(addr string, m *CancelOrderMessage) {
	s.bookMu.Lock()
	removed := s.book.CancelOrder(m.OrderID, m.Side)
	s.bookMu.Unlock()

	if !removed {
		// Already filled, expired, or never existed. Idempotent no-op; the
		// client is told either way.
		s.send(addr, errorReport(fmt.Errorf("cancel: unknown order %s", m.OrderID), s.clock.Now()))
		log.Info().Str("order", m.OrderID).Msg("cancel no-op")
		return
	}

	s.clearOwner(m.OrderID)
	s.send(addr, Report{
		MessageType: OrderAck,
		Side:        m.Side,
		Timestamp:   uint64(s.clock.Now().UnixNano()),
		OrderID:     m.OrderID,
	})
	log.Info().Str("order", m.OrderID).Msg("order cancelled")
}

// publishTrades fans execution reports out to both counterparties of every
// trade and releases owner entries for fully filled orders.
func (s *Server) publishTrades(trades []common.Trade) {
	for _, trade := range trades {
		log.Info().
			Str("buy", trade.BuyOrderID).
			Str("sell", trade.SellOrderID).
			Int64("price", trade.Price).
			Uint64("quantity", trade.Quantity).
			Msg("trade executed")

		buyReport, sellReport := tradeReports(trade)
		if addr, ok := s.owner(trade.BuyOrderID); ok {
			s.send(addr, buyReport)
		}
		if addr, ok := s.owner(trade.SellOrderID); ok {
			s.send(addr, sellReport)
		}

		s.bookMu.Lock()
		_, buyResting := s.book.Order(trade.BuyOrderID)
		_, sellResting := s.book.Order(trade.SellOrderID)
		s.bookMu.Unlock()
		if !buyResting {
			s.clearOwner(trade.BuyOrderID)
		}
		if !sellResting {
			s.clearOwner(trade.SellOrderID)
		}
	}
}

// expiryLoop evicts stale orders on a fixed tick and notifies their owners.
func (s *Server) expiryLoop(t *tomb.Tomb) error {
	ticker := time.NewTicker(s.expiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			now := s.clock.Now()
			s.bookMu.Lock()
			expired := s.book.ExpireOrders(now)
			s.bookMu.Unlock()

			for _, e := range expired {
				log.Info().
					Str("order", e.OrderID).
					Str("side", e.Side.String()).
					Msg("order expired")
				if addr, ok := s.owner(e.OrderID); ok {
					s.send(addr, expiryReport(e.OrderID, e.Side, now))
				}
				s.clearOwner(e.OrderID)
			}
		}
	}
}

// send writes a report to a client session, dropping the session on failure.
func (s *Server) send(clientAddress string, report Report) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return
	}
	if err := WriteFrame(client.conn, report.Serialize()); err != nil {
		log.Error().Err(err).Str("address", clientAddress).Msg("unable to send report")
		delete(s.clientSessions, clientAddress)
	}
}

func (s *Server) closeAllSessions() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	for addr, client := range s.clientSessions {
		_ = client.conn.Close()
		delete(s.clientSessions, addr)
	}
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{conn: conn}
}

func (s *Server) dropClientSession(addr string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	if client, ok := s.clientSessions[addr]; ok {
		_ = client.conn.Close()
		delete(s.clientSessions, addr)
	}
}

func (s *Server) owner(orderID string) (string, bool) {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	addr, ok := s.owners[orderID]
	return addr, ok
}

func (s *Server) setOwner(orderID, addr string) {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	s.owners[orderID] = addr
}

func (s *Server) clearOwner(orderID string) {
	s.ownersLock.Lock()
	defer s.ownersLock.Unlock()
	delete(s.owners, orderID)
}
