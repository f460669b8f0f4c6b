package transport

import (
	"fmt"
	"sync"
)

// Network is an in-process switch connecting MemoryHosts. Delivery is
// immediate: a Send lands in the peer's queue before Send returns.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*MemoryHost
}

func NewNetwork() *Network {
	return &Network{
		listeners: make(map[string]*MemoryHost),
	}
}

// Host returns a new host reachable at address once it listens.
func (n *Network) Host(address string) *MemoryHost {
	return &MemoryHost{
		network: n,
		address: address,
		links:   make(map[Handle]*memoryLink),
	}
}

type memoryLink struct {
	remote       *MemoryHost
	remoteHandle Handle
}

// MemoryHost implements Host on top of a Network.
type MemoryHost struct {
	network *Network
	address string
	queue   Queue

	mu        sync.Mutex
	links     map[Handle]*memoryLink
	listenKey string
	closed    bool
}

func memoryKey(address string, port int) string {
	return fmt.Sprintf("%s:%d", address, port)
}

func (h *MemoryHost) Listen(port int) error {
	key := memoryKey(h.address, port)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &NetError{Op: "listen", Addr: key, Err: ErrClosed}
	}
	if h.listenKey != "" {
		return &NetError{Op: "listen", Addr: key, Err: ErrAlreadyListening}
	}

	h.network.mu.Lock()
	defer h.network.mu.Unlock()
	if _, taken := h.network.listeners[key]; taken {
		return &NetError{Op: "listen", Addr: key, Err: ErrAddrInUse}
	}
	h.network.listeners[key] = h
	h.listenKey = key
	return nil
}

func (h *MemoryHost) Dial(address string, port int) (Handle, error) {
	key := memoryKey(address, port)

	h.network.mu.Lock()
	remote, ok := h.network.listeners[key]
	h.network.mu.Unlock()
	if !ok || remote == h {
		return "", &NetError{Op: "dial", Addr: key, Err: ErrUnreachable}
	}

	local, far := NewHandle(), NewHandle()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", &NetError{Op: "dial", Addr: key, Err: ErrClosed}
	}
	h.links[local] = &memoryLink{remote: remote, remoteHandle: far}
	h.mu.Unlock()

	remote.mu.Lock()
	if remote.closed {
		remote.mu.Unlock()
		h.dropLink(local)
		return "", &NetError{Op: "dial", Addr: key, Err: ErrUnreachable}
	}
	remote.links[far] = &memoryLink{remote: h, remoteHandle: local}
	remote.mu.Unlock()

	remote.queue.Push(Event{Kind: EventConnect, Handle: far})
	h.queue.Push(Event{Kind: EventConnect, Handle: local})
	return local, nil
}

func (h *MemoryHost) Poll() []Event {
	return h.queue.Drain()
}

func (h *MemoryHost) Send(handle Handle, data []byte) error {
	h.mu.Lock()
	link, ok := h.links[handle]
	h.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	if len(data) > MaxMessageSize {
		return &NetError{Op: "send", Addr: string(handle), Err: ErrMessageTooLarge}
	}

	msg := make([]byte, len(data))
	copy(msg, data)
	link.remote.queue.Push(Event{Kind: EventMessage, Handle: link.remoteHandle, Data: msg})
	return nil
}

func (h *MemoryHost) Disconnect(handle Handle) error {
	link := h.dropLink(handle)
	if link == nil {
		return ErrUnknownHandle
	}
	if link.remote.dropLink(link.remoteHandle) != nil {
		link.remote.queue.Push(Event{Kind: EventDisconnect, Handle: link.remoteHandle})
	}
	return nil
}

func (h *MemoryHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	handles := make([]Handle, 0, len(h.links))
	for handle := range h.links {
		handles = append(handles, handle)
	}
	key := h.listenKey
	h.mu.Unlock()

	if key != "" {
		h.network.mu.Lock()
		delete(h.network.listeners, key)
		h.network.mu.Unlock()
	}
	for _, handle := range handles {
		h.Disconnect(handle)
	}
	return nil
}

func (h *MemoryHost) dropLink(handle Handle) *memoryLink {
	h.mu.Lock()
	defer h.mu.Unlock()

	link, ok := h.links[handle]
	if !ok {
		return nil
	}
	delete(h.links, handle)
	return link
}
