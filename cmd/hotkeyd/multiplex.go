//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// multiplexer blocks on all open input sources at once using epoll.
//
// One control-loop goroutine waits here; the kernel wakes it only when a
// source has buffered events (or on the idle timeout). An eventfd is part of
// the wait set so the IPC server can wake the loop immediately when it
// injects an action, instead of that action waiting out the idle timeout.
type multiplexer struct {
	epfd   int
	wakeFd int
	byFd   map[int]*source
	logger *slog.Logger
}

// newMultiplexer registers all open sources with a fresh epoll instance.
func newMultiplexer(sources []*source, logger *slog.Logger) (*multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	m := &multiplexer{
		epfd:   epfd,
		wakeFd: wakeFd,
		byFd:   make(map[int]*source),
		logger: logger,
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		m.close()
		return nil, fmt.Errorf("epoll_ctl_add eventfd: %w", err)
	}

	for _, s := range sources {
		if err := m.add(s); err != nil {
			m.close()
			return nil, err
		}
	}

	return m, nil
}

// add registers one source with the wait set.
func (m *multiplexer) add(s *source) error {
	fd := s.fd()
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl_add fd=%d (%s): %w", fd, s.path, err)
	}
	m.byFd[fd] = s
	return nil
}

// wait blocks until at least one source is ready, the eventfd fires, or the
// timeout elapses. It returns the ready sources for this wake round; the
// caller drains each one fully before waiting again. A hung-up source is
// still returned ready so the subsequent failed read can mark it closed.
func (m *multiplexer) wait(timeout time.Duration) (ready []*source, woken bool, err error) {
	events := make([]unix.EpollEvent, len(m.byFd)+1)
	ms := int(timeout.Milliseconds())

	n, err := unix.EpollWait(m.epfd, events, ms)
	if err != nil {
		if err == syscall.EINTR {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == m.wakeFd {
			m.drainWake()
			woken = true
			continue
		}
		if s, ok := m.byFd[fd]; ok {
			ready = append(ready, s)
		}
	}
	return ready, woken, nil
}

// drop removes a source from the wait set and closes it. Used when a read
// fails with a disconnect-style error; the loop keeps running with whatever
// sources remain.
func (m *multiplexer) drop(s *source) {
	fd := s.fd()
	if _, ok := m.byFd[fd]; ok {
		if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			m.logger.Debug("epoll_ctl_del failed", "fd", fd, "error", err)
		}
		delete(m.byFd, fd)
	}
	s.close(m.logger)
}

// empty reports whether the wait set has no sources left.
func (m *multiplexer) empty() bool {
	return len(m.byFd) == 0
}

// Wake unblocks a pending wait. Safe to call from other goroutines.
func (m *multiplexer) Wake() {
	one := [8]byte{1} // any nonzero counter increment wakes the waiter
	if _, err := unix.Write(m.wakeFd, one[:]); err != nil && err != syscall.EAGAIN {
		m.logger.Debug("eventfd write failed", "error", err)
	}
}

// drainWake resets the eventfd counter after a wakeup.
func (m *multiplexer) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(m.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// close tears down the epoll instance and the eventfd. Sources themselves are
// closed by their owner.
func (m *multiplexer) close() {
	unix.Close(m.wakeFd)
	unix.Close(m.epfd)
}
