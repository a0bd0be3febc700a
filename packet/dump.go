package packet

import "fmt"

// Dump prints m in a human-readable form, for bgpdump and debugging.
func (m *Message) Dump() {
	fmt.Printf("Type: %d Length: %d\n", m.Header.Type, m.Header.Length)

	switch b := m.Body.(type) {
	case *Open:
		fmt.Printf("OPEN Message:\n")
		fmt.Printf("\tVersion: %d\n", b.Version)
		fmt.Printf("\tASN: %d\n", b.ASN)
		fmt.Printf("\tHoldTime: %d\n", b.HoldTime)
		fmt.Printf("\tBGP Identifier: %d\n", b.BGPID)
		for _, c := range b.Capabilities {
			fmt.Printf("\tCapability: code=%d value=%v\n", c.Code, c.Value)
		}

	case *Update:
		fmt.Printf("UPDATE Message:\n")
		fmt.Printf("Withdrawn routes:\n")
		for _, pfx := range b.WithdrawnRoutes {
			fmt.Printf("\t%s\n", pfx)
		}

		fmt.Printf("Path attributes:\n")
		for _, a := range b.PathAttrs {
			fmt.Printf("\t%s\n", a)
		}

		fmt.Printf("NLRIs:\n")
		for _, pfx := range b.NLRI {
			fmt.Printf("\t%s\n", pfx)
		}

	case *Notification:
		fmt.Printf("NOTIFICATION Message:\n")
		fmt.Printf("\tCode: %d Subcode: %d\n", b.ErrorCode, b.ErrorSubcode)
		fmt.Printf("\tData: %v\n", b.Data)

	case nil:
		fmt.Printf("KEEPALIVE Message\n")
	}
}
