//go:build windows

package capture

import (
	"fmt"
	"log/slog"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"soundsync/internal/wire"
)

// Loopback captures the default render (playback) device's mix via
// WASAPI loopback mode: the same technique the original project used
// through the `windows` crate, reimplemented here as a small hand
// rolled COM shim on top of golang.org/x/sys/windows, which exposes
// CoInitializeEx/CoCreateInstance/CoTaskMemFree but no audio-specific
// interfaces of its own. Only the float32 mix format is supported,
// matching WASAPI's near-universal default shared-mode format.
type Loopback struct {
	log    *slog.Logger
	client *comObject // IAudioClient
	cap    *comObject // IAudioCaptureClient
	event  windows.Handle
	frame  int // bytes per audio frame (blockAlign)
}

func NewLoopback(log *slog.Logger) *Loopback {
	if log == nil {
		log = slog.Default()
	}
	return &Loopback{log: log}
}

func (l *Loopback) ValidateOptions(opts Options) error {
	if optionsRequested(opts) {
		return ErrOptionsNotSupported
	}
	return nil
}

var (
	clsidMMDeviceEnumerator = windows.GUID{Data1: 0xbcde0395, Data2: 0xe52f, Data3: 0x467c,
		Data4: [8]byte{0x8e, 0x3d, 0xc4, 0x57, 0x92, 0x91, 0x69, 0x2e}}
	iidIMMDeviceEnumerator = windows.GUID{Data1: 0xa95664d2, Data2: 0x9614, Data3: 0x4f35,
		Data4: [8]byte{0xa7, 0x46, 0xde, 0x8d, 0xb6, 0x36, 0x17, 0xe6}}
	iidIAudioClient = windows.GUID{Data1: 0x1cb9ad4c, Data2: 0xdbfa, Data3: 0x4c32,
		Data4: [8]byte{0xb1, 0x78, 0xc2, 0xf5, 0x68, 0xa7, 0x03, 0xb2}}
	iidIAudioCaptureClient = windows.GUID{Data1: 0xc8adbd64, Data2: 0xe71e, Data3: 0x48a0,
		Data4: [8]byte{0xa4, 0xde, 0x18, 0x5c, 0x39, 0x5c, 0xd3, 0x17}}
)

// comObject is a handle to a COM interface pointer plus the vtable it
// points at, so we can call its methods by slot index without a full
// COM binding generator.
type comObject struct {
	ptr    uintptr
	vtable *[64]uintptr
}

func wrapCOM(ptr uintptr) *comObject {
	vt := *(**[64]uintptr)(unsafe.Pointer(ptr))
	return &comObject{ptr: ptr, vtable: vt}
}

func (c *comObject) call(slot int, args ...uintptr) (uintptr, error) {
	all := append([]uintptr{c.ptr}, args...)
	r, _, _ := syscall.SyscallN(c.vtable[slot], all...)
	if int32(r) < 0 {
		return r, fmt.Errorf("COM call failed: hresult=0x%x", uint32(r))
	}
	return r, nil
}

func (c *comObject) release() {
	if c != nil && c.ptr != 0 {
		_, _, _ = syscall.SyscallN(c.vtable[2], c.ptr)
	}
}

// waveFormatEx mirrors WAVEFORMATEX; sampleFormatIEEEFloat is the
// wFormatTag value for 32-bit float PCM.
type waveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	Size           uint16
}

const waveFormatIEEEFloat = 0x0003

// COM vtable slot indices, in declaration order, counting from
// IUnknown (slots 0-2: QueryInterface/AddRef/Release).
const (
	slotEnumGetDefaultAudioEndpoint = 4
	slotDeviceActivate              = 3
	slotClientGetMixFormat          = 8
	slotClientGetDevicePeriod       = 9
	slotClientInitialize            = 3
	slotClientSetEventHandle        = 13
	slotClientGetService            = 14
	slotClientStart                 = 10
	slotClientStop                  = 11
	slotCaptureGetBuffer            = 3
	slotCaptureReleaseBuffer        = 4
	slotCaptureGetNextPacketSize    = 5
)

const (
	eRender               = 0
	eConsole              = 0
	audclntShareModeShare = 0
	audclntStreamFlagsLoopback           = 0x00020000
	audclntStreamFlagsEventCallback      = 0x00040000
	audclntStreamFlagsAutoConvertPCM     = 0x80000000
	audclntStreamFlagsSrcDefaultQuality  = 0x08000000
	audclntBufferFlagsSilent            = 0x2
)

func (l *Loopback) PrepareMeta(Options) (wire.Meta, error) {
	runtime.LockOSThread()
	if err := windows.CoInitializeEx(0, windows.COINIT_MULTITHREADED); err != nil {
		return wire.Meta{}, fmt.Errorf("CoInitializeEx: %w", err)
	}
	defer windows.CoUninitialize()

	device, err := defaultRenderDevice()
	if err != nil {
		return wire.Meta{}, err
	}
	defer device.release()

	client, err := activateAudioClient(device)
	if err != nil {
		return wire.Meta{}, err
	}

	format, err := getMixFormat(client)
	if err != nil {
		client.release()
		return wire.Meta{}, err
	}
	if format.FormatTag != waveFormatIEEEFloat {
		client.release()
		return wire.Meta{}, fmt.Errorf("loopback mix format is not 32-bit float (tag=%d)", format.FormatTag)
	}

	l.client = client
	l.frame = int(format.BlockAlign)
	channels := format.Channels
	if channels > 255 {
		channels = 255
	}
	l.log.Info("capture source selected", "source", "loopback", "channels", channels, "sample_rate", format.SamplesPerSec)
	return wire.Meta{
		Channels:     uint8(channels),
		SampleRate:   int(format.SamplesPerSec),
		SampleFormat: wire.FormatF32,
	}, nil
}

func (l *Loopback) Start(meta wire.Meta, process ProcessChunk) error {
	client := l.client
	if client == nil {
		return fmt.Errorf("loopback: PrepareMeta must run before Start")
	}

	format := waveFormatEx{
		FormatTag:      waveFormatIEEEFloat,
		Channels:       uint16(meta.Channels),
		SamplesPerSec:  uint32(meta.SampleRate),
		BitsPerSample:  32,
		BlockAlign:     uint16(meta.Channels) * 4,
		AvgBytesPerSec: uint32(meta.SampleRate) * uint32(meta.Channels) * 4,
	}
	// Buffer duration equals the engine's minimum period, not a fixed
	// guess: a shorter buffer than the device can actually service just
	// means more, smaller GetBuffer calls, and a longer one adds latency
	// for no benefit in shared-mode event-driven capture.
	bufferDuration, err := getDevicePeriod(client)
	if err != nil {
		return fmt.Errorf("IAudioClient::GetDevicePeriod: %w", err)
	}

	const streamFlags = audclntStreamFlagsLoopback | audclntStreamFlagsEventCallback |
		audclntStreamFlagsAutoConvertPCM | audclntStreamFlagsSrcDefaultQuality
	if _, err := client.call(slotClientInitialize,
		uintptr(audclntShareModeShare), uintptr(streamFlags),
		uintptr(bufferDuration), 0, uintptr(unsafe.Pointer(&format)), 0,
	); err != nil {
		return fmt.Errorf("IAudioClient::Initialize: %w", err)
	}

	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return fmt.Errorf("CreateEvent: %w", err)
	}
	l.event = event
	if _, err := client.call(slotClientSetEventHandle, uintptr(event)); err != nil {
		return err
	}

	var capPtr uintptr
	if _, err := client.call(slotClientGetService,
		uintptr(unsafe.Pointer(&iidIAudioCaptureClient)), uintptr(unsafe.Pointer(&capPtr)),
	); err != nil {
		return fmt.Errorf("IAudioClient::GetService: %w", err)
	}
	l.cap = wrapCOM(capPtr)

	if _, err := client.call(slotClientStart); err != nil {
		return fmt.Errorf("IAudioClient::Start: %w", err)
	}

	go func() {
		boostCurrentThreadPriority(l.log)
		if err := l.runCapture(process); err != nil {
			l.log.Warn("loopback capture stopped", "err", err)
		}
		_, _ = client.call(slotClientStop)
	}()
	return nil
}

func (l *Loopback) runCapture(process ProcessChunk) error {
	for {
		for {
			var packetFrames uint32
			if _, err := l.cap.call(slotCaptureGetNextPacketSize, uintptr(unsafe.Pointer(&packetFrames))); err != nil {
				return err
			}
			if packetFrames == 0 {
				break
			}

			var dataPtr uintptr
			var framesReturned, flags uint32
			if _, err := l.cap.call(slotCaptureGetBuffer,
				uintptr(unsafe.Pointer(&dataPtr)), uintptr(unsafe.Pointer(&framesReturned)),
				uintptr(unsafe.Pointer(&flags)), 0, 0,
			); err != nil {
				return err
			}
			if framesReturned == 0 {
				_, _ = l.cap.call(slotCaptureReleaseBuffer, uintptr(framesReturned))
				continue
			}

			used := int(framesReturned) * l.frame
			chunk := make([]byte, used)
			if flags&audclntBufferFlagsSilent == 0 {
				src := unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), used)
				copy(chunk, src)
			}
			if _, err := l.cap.call(slotCaptureReleaseBuffer, uintptr(framesReturned)); err != nil {
				return err
			}
			if err := process(chunk); err != nil {
				return err
			}
		}

		r, err := windows.WaitForSingleObject(l.event, 2000)
		if err != nil {
			return err
		}
		if r == uint32(windows.WAIT_TIMEOUT) {
			continue
		}
	}
}

func defaultRenderDevice() (*comObject, error) {
	var enumPtr uintptr
	if err := windows.CoCreateInstance(
		&clsidMMDeviceEnumerator, nil, windows.CLSCTX_ALL,
		&iidIMMDeviceEnumerator, (**windows.IUnknown)(unsafe.Pointer(&enumPtr)),
	); err != nil {
		return nil, fmt.Errorf("CoCreateInstance(MMDeviceEnumerator): %w", err)
	}
	enumerator := wrapCOM(enumPtr)
	defer enumerator.release()

	var devicePtr uintptr
	if _, err := enumerator.call(slotEnumGetDefaultAudioEndpoint,
		uintptr(eRender), uintptr(eConsole), uintptr(unsafe.Pointer(&devicePtr)),
	); err != nil {
		return nil, fmt.Errorf("GetDefaultAudioEndpoint: %w", err)
	}
	return wrapCOM(devicePtr), nil
}

func activateAudioClient(device *comObject) (*comObject, error) {
	var clientPtr uintptr
	if _, err := device.call(slotDeviceActivate,
		uintptr(unsafe.Pointer(&iidIAudioClient)), uintptr(windows.CLSCTX_ALL), 0,
		uintptr(unsafe.Pointer(&clientPtr)),
	); err != nil {
		return nil, fmt.Errorf("IMMDevice::Activate(IAudioClient): %w", err)
	}
	return wrapCOM(clientPtr), nil
}

// getDevicePeriod returns IAudioClient::GetDevicePeriod's minimum
// period, in 100ns units, the shortest buffer the engine can service
// for this device.
func getDevicePeriod(client *comObject) (int64, error) {
	var defaultPeriod, minimumPeriod int64
	if _, err := client.call(slotClientGetDevicePeriod,
		uintptr(unsafe.Pointer(&defaultPeriod)), uintptr(unsafe.Pointer(&minimumPeriod)),
	); err != nil {
		return 0, err
	}
	return minimumPeriod, nil
}

func getMixFormat(client *comObject) (waveFormatEx, error) {
	var formatPtr uintptr
	if _, err := client.call(slotClientGetMixFormat, uintptr(unsafe.Pointer(&formatPtr))); err != nil {
		return waveFormatEx{}, fmt.Errorf("IAudioClient::GetMixFormat: %w", err)
	}
	format := *(*waveFormatEx)(unsafe.Pointer(formatPtr))
	windows.CoTaskMemFree(unsafe.Pointer(formatPtr))
	return format, nil
}
