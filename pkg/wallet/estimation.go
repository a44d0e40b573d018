package wallet

// ScriptType identifies the spending template of an input or output for the
// purpose of size estimation.
type ScriptType int

const (
	// P2TR key-path spend / taproot output.
	P2TR ScriptType = iota
	// P2WSH 2-of-2 multisig spend / script-hash output.
	P2WSH2of2
)

const (
	// DustLimit is the smallest change value worth creating an output for.
	// Anything below is folded into the fee.
	DustLimit uint64 = 330

	// Non-witness transaction overhead (version, locktime, counts) plus the
	// discounted segwit marker and flag, rounded up to whole vbytes.
	txBaseVSize = 11

	// A taproot key-path input: 36B outpoint, 1B empty script, 4B sequence,
	// plus a 64B schnorr signature witness at quarter weight.
	taprootInputVSize = 58

	// A 2-of-2 P2WSH input: the same non-witness part, plus a witness of two
	// DER signatures, an empty CHECKMULTISIG dummy and the 71B witness script.
	multisigInputVSize = 105

	// 8B value, 1B script length and the 34B segwit v1 program. The v0
	// script-hash program is 34B too.
	witnessV1OutputVSize           = 43
	witnessV0ScriptHashOutputVSize = 43
)

var (
	inputVSizes = map[ScriptType]uint64{
		P2TR:      taprootInputVSize,
		P2WSH2of2: multisigInputVSize,
	}
	outputVSizes = map[ScriptType]uint64{
		P2TR:      witnessV1OutputVSize,
		P2WSH2of2: witnessV0ScriptHashOutputVSize,
	}
)

// EstimateTxSizeOpts is the struct given to EstimateTxSize.
type EstimateTxSizeOpts struct {
	Inputs  []ScriptType
	Outputs []ScriptType
}

func (o EstimateTxSizeOpts) validate() error {
	if len(o.Inputs) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.Outputs) <= 0 {
		return ErrEmptyOutputs
	}
	for _, in := range o.Inputs {
		if _, ok := inputVSizes[in]; !ok {
			return ErrUnsupportedScriptType
		}
	}
	for _, out := range o.Outputs {
		if _, ok := outputVSizes[out]; !ok {
			return ErrUnsupportedScriptType
		}
	}
	return nil
}

// EstimateTxSize returns the estimated virtual size in vbytes of a
// transaction spending and creating the given script types. The model is
// linear, each script type contributing a fixed vbyte cost; costs are
// rounded up so the resulting fee is never below the real one.
func EstimateTxSize(opts EstimateTxSizeOpts) (uint64, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}

	size := uint64(txBaseVSize)
	for _, in := range opts.Inputs {
		size += inputVSizes[in]
	}
	for _, out := range opts.Outputs {
		size += outputVSizes[out]
	}
	return size, nil
}

// EstimateFeeAmountOpts is the struct given to EstimateFeeAmount.
type EstimateFeeAmountOpts struct {
	Inputs       []ScriptType
	Outputs      []ScriptType
	SatsPerVByte uint64
}

func (o EstimateFeeAmountOpts) validate() error {
	if o.SatsPerVByte <= 0 {
		return ErrInvalidFeeRate
	}
	return EstimateTxSizeOpts{Inputs: o.Inputs, Outputs: o.Outputs}.validate()
}

// EstimateFeeAmount returns the fee in satoshis for a transaction of the
// given shape at the given fee rate.
func EstimateFeeAmount(opts EstimateFeeAmountOpts) (uint64, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}

	size, err := EstimateTxSize(EstimateTxSizeOpts{
		Inputs: opts.Inputs, Outputs: opts.Outputs,
	})
	if err != nil {
		return 0, err
	}
	return size * opts.SatsPerVByte, nil
}
