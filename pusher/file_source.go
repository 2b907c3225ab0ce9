package pusher

import (
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bugVanisher/avpush/common/errs"
	"github.com/bugVanisher/avpush/media/av"
	"github.com/bugVanisher/avpush/media/codec/h264parser"
	"github.com/bugVanisher/avpush/media/container/flv"
	"github.com/bugVanisher/avpush/media/container/flv/flvio"
	"github.com/bugVanisher/avpush/media/pipeline"
	"github.com/bugVanisher/avpush/utils"
)

var httpClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// loopGap 循环播放时两轮之间的时间戳间隔
const loopGap = 40 * time.Millisecond

// FileSource 把FLV文件(本地路径或http地址)当作编码器, 按时间戳实时回放.
//
// 音视频两个编码器共用一个读协程, 创建出来的编码器都Start之后才开始读.
type FileSource struct {
	path     string
	loop     bool
	realtime bool
	open     func() (io.ReadCloser, error)

	probeOnce sync.Once
	probeErr  error
	hasVideo  bool
	hasAudio  bool

	mu      sync.Mutex
	audio   *fileEncoder
	video   *fileEncoder
	started int
	stop    chan struct{}
	done    chan struct{}
	rounds  int
}

func NewFileSource(path string, loop bool) *FileSource {
	s := &FileSource{path: path, loop: loop, realtime: true}
	s.open = s.openPath
	return s
}

// SetRealtime false时不按时间戳等待, 测试用
func (s *FileSource) SetRealtime(on bool) {
	s.realtime = on
}

func (s *FileSource) openPath() (io.ReadCloser, error) {
	if !strings.HasPrefix(s.path, "http://") && !strings.HasPrefix(s.path, "https://") {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", s.path)
		}
		return f, nil
	}
	req, err := http.NewRequest(http.MethodGet, s.path, nil)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrConnectURL, "url: %s", s.path)
	}
	req.Header.Set("User-Agent", "avpush")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("Connection", "close")
	resp, err := httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", s.path).Msg("[FileSource] req fail")
		return nil, errs.Wrapf(errs.ErrConnectURL, "url: %s", s.path)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, errs.Wrapf(errs.ErrStreamNotExist, "url: %s status: %d", s.path, resp.StatusCode)
	}
	return resp.Body, nil
}

// probe 只读文件头, 判断有没有音视频
func (s *FileSource) probe() error {
	s.probeOnce.Do(func() {
		rc, err := s.open()
		if err != nil {
			s.probeErr = err
			return
		}
		defer rc.Close()
		d := flv.NewDemuxer(rc)
		if err = d.Prepare(); err != nil {
			s.probeErr = errs.EncodingError(errs.KindFormatNotSupported, "flv: "+err.Error())
			return
		}
		s.hasVideo, s.hasAudio = d.HasVideo(), d.HasAudio()
		if !s.hasVideo && !s.hasAudio {
			s.probeErr = errs.EncodingError(errs.KindFormatNotSupported, "flv: file has neither audio nor video")
		}
	})
	return s.probeErr
}

func (s *FileSource) AudioEncoder(av.AudioConfig) (pipeline.Encoder, error) {
	if err := s.probe(); err != nil {
		return nil, err
	}
	if !s.hasAudio {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = &fileEncoder{src: s, media: av.Audio}
	return s.audio, nil
}

func (s *FileSource) VideoEncoder(av.VideoConfig) (pipeline.Encoder, error) {
	if err := s.probe(); err != nil {
		return nil, err
	}
	if !s.hasVideo {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = &fileEncoder{src: s, media: av.Video}
	return s.video, nil
}

// Done 非循环模式读完文件后关闭, 没有开始读时返回nil
func (s *FileSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Rounds 已完整播放的轮数
func (s *FileSource) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

func (s *FileSource) expected() int {
	n := 0
	if s.audio != nil {
		n++
	}
	if s.video != nil {
		n++
	}
	return n
}

func (s *FileSource) encoderStarted(e *fileEncoder, cb pipeline.EncoderCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.cb != nil {
		return errs.InvalidState("file source: %s encoder already started", e.media)
	}
	e.cb = cb
	s.started++
	if s.started < s.expected() || s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done, s.audio.callback(), s.video.callback())
	return nil
}

func (s *FileSource) encoderStopped(e *fileEncoder) {
	s.mu.Lock()
	if e.cb == nil {
		s.mu.Unlock()
		return
	}
	e.cb = nil
	s.started--
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (s *FileSource) run(stop, done chan struct{}, audio, video pipeline.EncoderCallback) {
	defer close(done)
	defer utils.PanicRecoverWithInfo("file source")

	r := &fileReader{src: s, stop: stop, audio: audio, video: video, begin: time.Now()}
	for {
		err := r.round()
		if err == errStopped {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("path", s.path).Msg("[FileSource] read")
			r.fail(err.Error())
			return
		}
		s.mu.Lock()
		s.rounds++
		rounds := s.rounds
		s.mu.Unlock()
		log.Debug().Msgf("has read %d round", rounds)
		if !s.loop {
			return
		}
		r.nextRound()
	}
}

var errStopped = errors.New("file source stopped")

type fileReader struct {
	src   *FileSource
	stop  chan struct{}
	audio pipeline.EncoderCallback
	video pipeline.EncoderCallback

	begin   time.Time
	offset  time.Duration
	firstTs time.Duration
	lastTs  time.Duration
	hasTs   bool
}

// nextRound 下一轮的时间戳接在这一轮后面
func (r *fileReader) nextRound() {
	r.offset += r.lastTs - r.firstTs + loopGap
	r.lastTs, r.hasTs = 0, false
}

func (r *fileReader) fail(msg string) {
	if r.video != nil {
		r.video.OnError(msg)
	}
	if r.audio != nil {
		r.audio.OnError(msg)
	}
}

func (r *fileReader) round() error {
	rc, err := r.src.open()
	if err != nil {
		return err
	}
	defer rc.Close()
	d := flv.NewDemuxer(rc)
	for {
		select {
		case <-r.stop:
			return errStopped
		default:
		}
		tag, err := d.ReadTag()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = r.handle(tag); err != nil {
			return err
		}
	}
}

func (r *fileReader) timestamp(tag flvio.Tag) time.Duration {
	ts := time.Duration(tag.Timestamp) * time.Millisecond
	if !r.hasTs {
		r.firstTs, r.hasTs = ts, true
	}
	// 时间戳回退时按递增处理
	if ts < r.lastTs && ts >= r.firstTs {
		ts = r.lastTs
	}
	r.lastTs = ts
	return r.offset + ts - r.firstTs
}

// wait 按墙上时钟等到该帧的发送时间
func (r *fileReader) wait(ts time.Duration) error {
	if !r.src.realtime {
		return nil
	}
	d := time.Until(r.begin.Add(ts))
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.stop:
		return errStopped
	case <-timer.C:
		return nil
	}
}

func (r *fileReader) handle(tag flvio.Tag) error {
	switch tag.Type {
	case flvio.TAG_VIDEO:
		if r.video == nil {
			return nil
		}
		vt, err := flv.ParseVideoTag(tag.Data)
		if err != nil {
			return err
		}
		switch vt.PacketType {
		case flv.PACKET_SEQHDR:
			params, err := parameterSets(vt.Codec, vt.Data)
			if err != nil {
				return err
			}
			r.video.OnOutputFormatChanged(av.FormatDescriptor{Type: av.Video, VideoCodec: vt.Codec, ParameterSets: params})
		case flv.PACKET_NALU:
			ts := r.timestamp(tag)
			if err = r.wait(ts); err != nil {
				return err
			}
			r.video.OnEncodedFrame(vt.Data, ts, vt.FrameType == flv.FRAME_KEY)
		}
	case flvio.TAG_AUDIO:
		if r.audio == nil {
			return nil
		}
		at, err := flv.ParseAudioTag(tag.Data)
		if err != nil {
			return err
		}
		if at.PacketType == flv.AAC_SEQHDR {
			r.audio.OnOutputFormatChanged(av.FormatDescriptor{Type: av.Audio, AudioSpecificConfig: at.Data})
			return nil
		}
		ts := r.timestamp(tag)
		if err = r.wait(ts); err != nil {
			return err
		}
		r.audio.OnEncodedFrame(at.Data, ts, false)
	}
	return nil
}

// parameterSets 从序列头取出参数集, H264为SPS+PPS, H265为VPS+SPS+PPS
func parameterSets(codec av.VideoCodec, record []byte) ([][]byte, error) {
	var params [][]byte
	if codec == av.H265 {
		var rec h264parser.HEVCDecoderConfRecord
		if _, err := rec.Unmarshal(record); err != nil {
			return nil, err
		}
		params = append(params, rec.VPS...)
		params = append(params, rec.SPS...)
		return append(params, rec.PPS...), nil
	}
	var rec h264parser.AVCDecoderConfRecord
	if _, err := rec.Unmarshal(record); err != nil {
		return nil, err
	}
	params = append(params, rec.SPS...)
	return append(params, rec.PPS...), nil
}

// fileEncoder FileSource里的一路媒体
type fileEncoder struct {
	src   *FileSource
	media av.MediaType
	cb    pipeline.EncoderCallback
}

func (e *fileEncoder) callback() pipeline.EncoderCallback {
	if e == nil {
		return nil
	}
	return e.cb
}

func (e *fileEncoder) Start(cb pipeline.EncoderCallback) error {
	return e.src.encoderStarted(e, cb)
}

func (e *fileEncoder) Stop() error {
	e.src.encoderStopped(e)
	return nil
}
