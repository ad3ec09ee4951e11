// Package rpc forwards per-tick automation frames to another process over
// net/rpc, e.g. to drive lights or a visualizer in sync with the music.
package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"sync"

	"github.com/tsb/numus"
)

// DefaultAddress is where Receiver listens when given an empty address.
const DefaultAddress = ":31337"

var ErrDropped = errors.New("rpc: automation frame dropped, sender queue full")

type (
	SyncServer struct {
		channel chan numus.Automation
	}

	// Receiver serves automation frames received from a Sender on C. Frames
	// arriving while C is full are dropped, so a slow consumer never stalls
	// the performance.
	Receiver struct {
		C        <-chan numus.Automation
		listener net.Listener
		done     chan struct{}
	}

	// Sender is a numus.AutomationSink that forwards frames to a Receiver.
	// Automate never blocks: frames are queued and sent from a goroutine.
	Sender struct {
		client *rpc.Client
		queue  chan numus.Automation
		wg     sync.WaitGroup

		mu   sync.Mutex
		err  error
		once sync.Once
	}
)

func (s *SyncServer) Sync(frame numus.Automation, reply *int) error {
	select {
	case s.channel <- frame:
	default:
	}
	return nil
}

// NewReceiver starts listening on address; an empty address means
// DefaultAddress.
func NewReceiver(address string) (*Receiver, error) {
	if address == "" {
		address = DefaultAddress
	}
	c := make(chan numus.Automation, 64)
	server := rpc.NewServer()
	if err := server.Register(&SyncServer{channel: c}); err != nil {
		return nil, fmt.Errorf("rpc.Register failed: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %w", err)
	}
	r := &Receiver{C: c, listener: l, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		http.Serve(l, mux)
	}()
	return r, nil
}

// Addr returns the address the receiver listens on.
func (r *Receiver) Addr() string {
	return r.listener.Addr().String()
}

// Close stops listening.
func (r *Receiver) Close() error {
	err := r.listener.Close()
	<-r.done
	return err
}

// NewSender connects to a Receiver at address (host:port).
func NewSender(address string) (*Sender, error) {
	client, err := rpc.DialHTTP("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %w", err)
	}
	s := &Sender{client: client, queue: make(chan numus.Automation, 256)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range s.queue {
			var reply int
			if err := client.Call("SyncServer.Sync", msg, &reply); err != nil {
				s.mu.Lock()
				if s.err == nil {
					s.err = fmt.Errorf("SyncServer.Sync failed: %w", err)
				}
				s.mu.Unlock()
			}
		}
	}()
	return s, nil
}

// Automate queues the frame. It returns the first error of an earlier call,
// or ErrDropped if the queue is full.
func (s *Sender) Automate(a numus.Automation) error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case s.queue <- a:
		return nil
	default:
		return ErrDropped
	}
}

// Close sends the queued frames and closes the connection. Automate must not
// be called after Close.
func (s *Sender) Close() error {
	s.once.Do(func() { close(s.queue) })
	s.wg.Wait()
	return s.client.Close()
}
