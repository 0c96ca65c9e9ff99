package raknet

// Reliability is the per-message delivery contract carried in the top
// three bits of an EncapsulatedPacket's flag byte.
type Reliability uint8

const (
	Unreliable Reliability = iota
	UnreliableSequenced
	Reliable
	ReliableOrdered
	ReliableSequenced
	UnreliableWithAckReceipt
	ReliableWithAckReceipt
	ReliableOrderedWithAckReceipt
)

func (r Reliability) IsReliable() bool {
	switch r {
	case Reliable, ReliableOrdered, ReliableSequenced, ReliableWithAckReceipt, ReliableOrderedWithAckReceipt:
		return true
	default:
		return false
	}
}

func (r Reliability) IsOrdered() bool {
	return r == ReliableOrdered || r == ReliableOrderedWithAckReceipt
}

func (r Reliability) IsSequenced() bool {
	return r == UnreliableSequenced || r == ReliableSequenced
}

func (r Reliability) IsOrderedOrSequenced() bool {
	return r.IsOrdered() || r.IsSequenced()
}

func (r Reliability) IsAckReceipt() bool {
	switch r {
	case UnreliableWithAckReceipt, ReliableWithAckReceipt, ReliableOrderedWithAckReceipt:
		return true
	default:
		return false
	}
}

func (r Reliability) Valid() bool {
	return r <= ReliableOrderedWithAckReceipt
}
