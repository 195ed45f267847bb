package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startTestServer runs an in-process authoritative DNS server over UDP on
// localhost, answering exactly the records handler supplies. It avoids any
// dependency on real network resolvers.
func startTestServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestLookupAReturnsAnswerRecords(t *testing.T) {
	addr := startTestServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		if len(r.Question) == 1 && r.Question[0].Qtype == dns.TypeA {
			rr, err := dns.NewRR(r.Question[0].Name + " 60 IN A 192.0.2.42")
			require.NoError(t, err)
			m.Answer = append(m.Answer, rr)
		}
		w.WriteMsg(m)
	})

	r := New(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ips, err := r.LookupA(ctx, "svc.internal.test.", 0)
	require.NoError(t, err)
	require.Len(t, ips, 1)
	require.Equal(t, "192.0.2.42", ips[0].String())
}

func TestLookupFailsWithNoServersConfigured(t *testing.T) {
	r := &DNS{client: New().client}
	_, err := r.LookupA(context.Background(), "svc.internal.test.", 0)
	require.Error(t, err)
}
