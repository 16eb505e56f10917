package socket

import "sync"

// remoteDocument mirrors the browser editor of one session. SetContent pushes
// a HYDRATE message; CHANGE messages from the browser arrive through receive.
type remoteDocument struct {
	mu      sync.Mutex
	content string
	handler func(string)
	client  *Client
}

func (d *remoteDocument) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

func (d *remoteDocument) SetContent(content string) {
	d.mu.Lock()
	d.content = content
	d.mu.Unlock()
	d.client.sendHydrate(content)
}

func (d *remoteDocument) OnChange(handler func(string)) {
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
}

func (d *remoteDocument) receive(content string) {
	d.mu.Lock()
	d.content = content
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(content)
	}
}
