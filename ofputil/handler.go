package ofputil

import (
	"log"

	of "github.com/netrack/ofagent"
	"github.com/netrack/ofagent/ofp"
)

// EchoHandler returns a request handler that replies on each request
// with an echo message carrying the same data as was retrieved in the
// original message.
//
// The method accepts an optional handler that will be executed after
// a successful reply submission.
func EchoHandler(h of.Handler) of.Handler {
	fn := func(rw of.ResponseWriter, r *of.Request) {
		var req ofp.EchoRequest

		if _, err := req.ReadFrom(r.Body); err != nil {
			log.Printf("ofputil: failed to read the message: %v", err)
			return
		}

		rw.Header().Set(of.TypeHeaderKey, of.TypeEchoReply)
		rw.Header().Set(of.XIDHeaderKey, r.Header.Get(of.XIDHeaderKey))
		rw.Header().Set(of.VersionHeaderKey, r.Header.Get(of.VersionHeaderKey))

		reply := ofp.EchoReply{Data: req.Data}
		if _, err := reply.WriteTo(rw); err != nil {
			log.Printf("ofputil: failed to write the reply: %v", err)
			return
		}

		if err := rw.WriteHeader(); err != nil {
			log.Printf("ofputil: failed to send the reply: %v", err)
			return
		}

		if h != nil {
			h.Serve(rw, r)
		}
	}

	return of.HandlerFunc(fn)
}

// HelloHandler returns a simple request handler that replies to each
// request with a hello message of the specified version.
//
// The method accepts an optional handler that will be executed after a
// successful reply submission.
func HelloHandler(version uint8, h of.Handler) of.Handler {
	fn := func(rw of.ResponseWriter, r *of.Request) {
		rw.Header().Set(of.TypeHeaderKey, of.TypeHello)
		rw.Header().Set(of.XIDHeaderKey, r.Header.Get(of.XIDHeaderKey))
		rw.Header().Set(of.VersionHeaderKey, version)

		if err := rw.WriteHeader(); err != nil {
			log.Printf("ofputil: failed to send the reply: %v", err)
			return
		}

		if h != nil {
			h.Serve(rw, r)
		}
	}

	return of.HandlerFunc(fn)
}
